// Package timingattack recovers an RSA private exponent from the decryption
// time of a left-to-right square-and-multiply implementation.
//
// A modular product is reduced only when it reaches the modulus, and that
// extra reduction costs time. For every round the attacker draws ciphertexts,
// simulates the exponentiation up to the bits recovered so far and sorts
// them by whether the next squaring would need an extra reduction, once
// assuming the next bit is 0 and once assuming it is 1. Only the true
// hypothesis shows a timing gap between its two classes.
//
// # Quick Start
//
//	client := timingattack.NewClient().
//	    WithClock(timingattack.ClockConfig{
//	        Synthetic: true,
//	        Base:      10 * time.Microsecond,
//	        Penalty:   time.Microsecond,
//	    })
//
//	report, err := client.Attack(ctx, 16)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("Status: %s, d = %s\n", report.Result.Status, report.Result.Exponent)
//
// # Driving the search
//
// KeyRecoverySearch exposes the state machine directly. Step runs one
// round (generate, measure, classify, extend or backtrack, probe) and
// Run loops until the state is Cracked or Failed:
//
//	search, err := timingattack.NewKeyRecoverySearch(oracle, timingattack.DefaultAttackConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	state := timingattack.NewSearchState(10)
//	for !state.Status.Terminal() {
//	    verdict, err := search.Step(ctx, state)
//	    ...
//	}
//
// # Countermeasure
//
// DecryptionOracle.WithBlinding multiplies every ciphertext by r^e for a
// fresh r before decryption. The attacker's predictions then no longer
// match what the oracle computes and every round ends Ambiguous.
package timingattack
