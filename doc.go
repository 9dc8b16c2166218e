// Package hexpi calculates individual hexadecimal fractional digits of pi using
// the Bailey-Borwein-Plouffe digit extraction formula.
//
// Every digit is computed independently of the digits that precede it, using
// fixed-width integer and float64 arithmetic only. Digit calculations share no
// state and may be freely executed in parallel.
//
//	hexpi.Digits(0, 4) // "243F"
package hexpi
