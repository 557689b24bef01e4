package semver_test

import (
	"fmt"

	"github.com/matzehuels/nary/pkg/semver"
)

func ExampleParseRange() {
	r, err := semver.ParseRange("^4.1.0")
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Println(r.Test("4.2.0"))
	fmt.Println(r.Test("5.0.0"))
	// Output:
	// true
	// false
}

func ExampleParseRangeWithPolicy() {
	last, _ := semver.ParseRangeWithPolicy("^1.0.0 || ^2.0.0", semver.PolicyLast)
	union, _ := semver.ParseRangeWithPolicy("^1.0.0 || ^2.0.0", semver.PolicyUnion)
	fmt.Println(last.Test("1.4.0"), union.Test("1.4.0"))
	// Output:
	// false true
}
