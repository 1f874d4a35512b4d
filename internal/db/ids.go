package db

import "github.com/google/uuid"

// seedNamespace scopes deterministic ids generated during seeding.
var seedNamespace = uuid.MustParse("3f0c6f2e-8a4b-4f0e-9d7c-5b1a2e3c4d5f")

func uuidFrom(name string) string {
	return uuid.NewSHA1(seedNamespace, []byte(name)).String()
}
