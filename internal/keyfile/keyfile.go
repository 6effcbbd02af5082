package keyfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mahdiidarabi/rsa-timing/pkg/timingattack"
)

// Field names accepted in key files. Each entry lists the canonical name
// first, followed by its aliases.
var fieldNames = map[string][]string{
	"n": {"n", "modulus"},
	"e": {"e", "public_exponent"},
	"d": {"d", "private_exponent"},
	"p": {"p"},
	"q": {"q"},
}

// Load reads an RSA key pair from a JSON or YAML file, chosen by extension
// (.json, .yaml, .yml).
//
// Expected format (numbers or strings; strings may be 0x-prefixed hex):
//
//	{"n": 40633, "e": 65537, "d": 40077, "p": 227, "q": 179}
//
// Either p and q, or n and d, must be present. e defaults to 65537.
func Load(path string) (*timingattack.KeyPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var fields map[string]*big.Int
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		fields, err = parseJSON(data)
	case ".yaml", ".yml":
		fields, err = parseYAML(data)
	default:
		return nil, fmt.Errorf("%w: unsupported key file extension %q", timingattack.ErrInvalidConfig, filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	return build(fields)
}

func parseJSON(data []byte) (map[string]*big.Int, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber() // Preserve large numbers as json.Number instead of float64

	var raw map[string]interface{}
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return collect(raw)
}

func parseYAML(data []byte) (map[string]*big.Int, error) {
	// Decode into nodes so large integers keep their exact text.
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: key file must be a mapping", timingattack.ErrInvalidConfig)
	}

	root := doc.Content[0]
	raw := make(map[string]interface{}, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%w: field %s must be a scalar", timingattack.ErrInvalidConfig, key.Value)
		}
		raw[key.Value] = value.Value
	}
	return collect(raw)
}

func collect(raw map[string]interface{}) (map[string]*big.Int, error) {
	fields := make(map[string]*big.Int)
	for name, aliases := range fieldNames {
		for _, alias := range aliases {
			val, ok := raw[alias]
			if !ok {
				continue
			}
			z, err := parseBigInt(val)
			if err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", alias, err)
			}
			fields[name] = z
			break
		}
	}
	return fields, nil
}

func build(fields map[string]*big.Int) (*timingattack.KeyPair, error) {
	e, ok := fields["e"]
	if !ok {
		e = big.NewInt(timingattack.DefaultPublicExponent)
	}
	p, hasP := fields["p"]
	q, hasQ := fields["q"]
	n, hasN := fields["n"]
	d, hasD := fields["d"]

	var pair *timingattack.KeyPair
	switch {
	case hasP && hasQ:
		var err error
		pair, err = timingattack.NewKeyPair(p, q, e)
		if err != nil {
			return nil, err
		}
		if hasN && n.Cmp(pair.Public.N) != 0 {
			return nil, fmt.Errorf("%w: n does not equal p*q", timingattack.ErrInvalidConfig)
		}
		if hasD {
			pair.Secret.D = d
		}
	case hasN && hasD:
		pub := timingattack.PublicKey{N: n, E: e}
		pair = &timingattack.KeyPair{
			Public: pub,
			Secret: timingattack.SecretKey{PublicKey: pub, D: d},
		}
	default:
		return nil, fmt.Errorf("%w: key file needs p and q, or n and d", timingattack.ErrInvalidConfig)
	}

	if err := pair.Validate(); err != nil {
		return nil, err
	}
	return pair, nil
}

// parseBigInt parses a big integer from various formats (hex string,
// decimal string, number).
func parseBigInt(val interface{}) (*big.Int, error) {
	switch v := val.(type) {
	case string:
		s := strings.TrimSpace(v)
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			z, ok := new(big.Int).SetString(s[2:], 16)
			if !ok {
				return nil, fmt.Errorf("invalid hex number: %s", v)
			}
			return z, nil
		}
		z, ok := new(big.Int).SetString(s, 10)
		if !ok {
			// Bare hex such as "9eb9"
			if z, ok = new(big.Int).SetString(s, 16); !ok {
				return nil, fmt.Errorf("invalid number format: %s", v)
			}
		}
		return z, nil

	case json.Number:
		// json.Number preserves precision for large integers
		z := new(big.Int)
		if _, ok := z.SetString(string(v), 10); !ok {
			return nil, fmt.Errorf("invalid number format: %s", v)
		}
		return z, nil

	case int64:
		return big.NewInt(v), nil

	case int:
		return big.NewInt(int64(v)), nil

	default:
		return nil, fmt.Errorf("unsupported type: %T", val)
	}
}

// document is the on-disk layout written by Save.
type document struct {
	N string `json:"n" yaml:"n"`
	E string `json:"e" yaml:"e"`
	D string `json:"d" yaml:"d"`
	P string `json:"p,omitempty" yaml:"p,omitempty"`
	Q string `json:"q,omitempty" yaml:"q,omitempty"`
}

// Save writes pair to path as JSON or YAML, chosen by extension. Values are
// written as decimal strings.
func Save(path string, pair *timingattack.KeyPair) error {
	if pair == nil || pair.Public.N == nil || pair.Secret.D == nil {
		return fmt.Errorf("%w: incomplete key pair", timingattack.ErrInvalidConfig)
	}
	doc := document{
		N: pair.Public.N.String(),
		E: pair.Public.E.String(),
		D: pair.Secret.D.String(),
	}
	if pair.P != nil && pair.Q != nil {
		doc.P, doc.Q = pair.P.String(), pair.Q.String()
	}

	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(doc, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(doc)
	default:
		return fmt.Errorf("%w: unsupported key file extension %q", timingattack.ErrInvalidConfig, filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("failed to encode key: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
