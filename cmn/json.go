package cmn

import jsoniter "github.com/json-iterator/go"

// JSON is the shared jsoniter codec, configured for standard-library
// compatibility (field ordering, map ordering). Every package that needs to
// marshal/unmarshal uses this instead of importing encoding/json directly,
// matching the teacher's (and the rest of the pack's) universal
// json-iterator-go convention.
var JSON = jsoniter.ConfigCompatibleWithStandardLibrary

// MustMarshal marshals v and panics on error — used only for values whose
// shape is controlled entirely by this codebase (no user input), mirroring
// the teacher's cmn.MustMarshal.
func MustMarshal(v interface{}) []byte {
	b, err := JSON.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
