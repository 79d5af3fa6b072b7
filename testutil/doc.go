// Package testutil provides testing utilities for dcstore.
//
// This package is intended for use in tests only. It provides a seeded,
// thread-safe RNG for filling arrays and a fixture store that mirrors a
// typical small microstructure dataset.
//
// # Random Values
//
//	rng := testutil.NewRNG(seed)
//	vals := make([]float32, 128)
//	rng.FillUniform(vals)          // uniform [0, 1)
//	ids := rng.Int32s(100, 1, 10)  // uniform [1, 10)
//
// # Fixture Store
//
//	s := testutil.NewFixtureStore()
//	ids, _ := store.TypedArray[int32](s, testutil.FeatureIDsPath, []int{1})
package testutil
