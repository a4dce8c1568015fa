// Package model provides the shared machinery for Avalon's record
// generators: a weighted template engine for log-like models and the seeded
// random helpers they draw from. Concrete models live in subpackages
// (testgen, rflow, snort, asa), each registering itself as a model
// extension.
package model
