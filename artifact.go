package enclave

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Increment when the serialized artifact layout changes.
const artifactSchemaVersion uint16 = 1

// Artifact is the compiled, executable form of one submission: the
// emitted text of every runtime module plus the user unit's source map.
// It is a plain value with no ties back to the compiler front end, so
// callers may cache it and replay it across executions — or across
// processes via EncodeArtifact/DecodeArtifact.
type Artifact struct {
	// Modules maps stripped unit identifier to emitted executable text.
	Modules map[string]string
	// SourceMap is the user unit's source map (v3 JSON).
	SourceMap string
	// Entry is the harness module's identifier.
	Entry string
	// User is the user unit's identifier.
	User string
}

type artifactPayload struct {
	Schema    uint16            `msgpack:"schema"`
	Modules   map[string]string `msgpack:"modules"`
	SourceMap string            `msgpack:"source_map"`
	Entry     string            `msgpack:"entry"`
	User      string            `msgpack:"user"`
}

// EncodeArtifact serializes an artifact for cross-process caching.
func EncodeArtifact(a *Artifact) ([]byte, error) {
	payload := artifactPayload{
		Schema:    artifactSchemaVersion,
		Modules:   a.Modules,
		SourceMap: a.SourceMap,
		Entry:     a.Entry,
		User:      a.User,
	}
	out, err := msgpack.Marshal(&payload)
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return out, nil
}

// DecodeArtifact restores an artifact serialized by EncodeArtifact.
// Artifacts written by a different schema version are rejected.
func DecodeArtifact(data []byte) (*Artifact, error) {
	var payload artifactPayload
	if err := msgpack.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if payload.Schema != artifactSchemaVersion {
		return nil, fmt.Errorf("decode artifact: schema %d, want %d",
			payload.Schema, artifactSchemaVersion)
	}
	return &Artifact{
		Modules:   payload.Modules,
		SourceMap: payload.SourceMap,
		Entry:     payload.Entry,
		User:      payload.User,
	}, nil
}
