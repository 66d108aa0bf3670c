// Package id generates prefix-qualified, K-sortable identifiers for every
// stored entity, e.g. "ord_01h2xcejqtf2nbrexx3vqjhp41".
package id

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

type Prefix string

const (
	PrefixTable    Prefix = "tbl"
	PrefixSession  Prefix = "ses"
	PrefixProduct  Prefix = "prd"
	PrefixOrder    Prefix = "ord"
	PrefixItem     Prefix = "itm"
	PrefixRegister Prefix = "reg"
	PrefixPayment  Prefix = "pay"
	PrefixInstance Prefix = "inst"
)

// New panics on an invalid prefix; all prefixes are the constants above.
func New(prefix Prefix) string {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return tid.String()
}
