package main

import "strings"

// stringList is a flag.Value that accumulates one comma-separated flag
// occurrence into a slice, the same "Comma-separated list of ..." flag
// style cmd/bio-fusion/main.go uses for -r1/-r2.
type stringList struct {
	values []string
}

func (s *stringList) String() string { return strings.Join(s.values, ",") }

func (s *stringList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part != "" {
			s.values = append(s.values, part)
		}
	}
	return nil
}
