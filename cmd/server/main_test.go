package main

import "testing"

func TestAdminKeyProblem(t *testing.T) {
	cases := map[string]bool{
		"":                                 false,
		"short":                            false,
		"change-me-change-me-change-me-1":  false,
		"f3a9c1d7e5b24680aa11bb22cc33dd44": true,
	}
	for key, ok := range cases {
		if got := adminKeyProblem(key) == ""; got != ok {
			t.Fatalf("key %q acceptable want %v got %v", key, ok, got)
		}
	}
}
