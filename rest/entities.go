package rest

import "github.com/harvestrt/harvestrt/cmn"

// entity is the JSON response envelope every endpoint replies with, per
// spec §4.9: {"status":"OK"|"FAILED","message":string} or
// {"status":"OK","value":<json>}.
type entity struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Value   interface{} `json:"value,omitempty"`
}

func okEntity(value interface{}) entity {
	return entity{Status: "OK", Value: value}
}

func okMessage(msg string) entity {
	return entity{Status: "OK", Message: msg}
}

func failedEntity(msg string) entity {
	return entity{Status: "FAILED", Message: msg}
}

func marshalEntity(e entity) []byte {
	return cmn.MustMarshal(e)
}
