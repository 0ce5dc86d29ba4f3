// Package bagv defines an API for validating BagIt bags for long-term
// preservation.
//
// Validation is performed by independent validators, one per concern
// (profile conformance, payload structure, payload integrity, file
// formats), composed through the validate package.  File-format checking is
// delegated to one or more Plugin implementations.  Plugins may inspect file
// names, magic numbers, or wrap external validation tools; see the bundled
// implementations under plugins/ for more information.
package bagv
