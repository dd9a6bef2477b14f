package reconcile

// AsymmetricDifference returns the elements of a whose key appears neither in b
// nor in exclusions, in a's order. Keys are compared exactly.
func AsymmetricDifference[T any](a, b []T, exclusions []string, key func(T) string) []T {
	skip := make(map[string]struct{}, len(b)+len(exclusions))
	for _, item := range b {
		skip[key(item)] = struct{}{}
	}
	for _, ex := range exclusions {
		skip[ex] = struct{}{}
	}

	out := make([]T, 0)
	for _, item := range a {
		if _, ok := skip[key(item)]; ok {
			continue
		}
		out = append(out, item)
	}
	return out
}

// Strings is AsymmetricDifference for plain identifier lists.
func Strings(a, b, exclusions []string) []string {
	return AsymmetricDifference(a, b, exclusions, func(s string) string { return s })
}
