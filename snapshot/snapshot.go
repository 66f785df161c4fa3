// Package snapshot persists decoded heap graphs.
//
// A snapshot is a versioned envelope around a convert.Node tree, written as
// canonical CBOR or as msgpack. Canonical CBOR makes equal graphs encode to
// equal bytes, so snapshots can be compared or hashed directly.
package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/wippyai/jlvalue"
	"github.com/wippyai/jlvalue/convert"
	"github.com/wippyai/jlvalue/errors"
	"github.com/wippyai/jlvalue/runtime"
)

// Version is the envelope schema written by this package. Readers accept
// any version from 1 up to it.
const Version = 1

type Format string

const (
	FormatCBOR    Format = "cbor"
	FormatMsgpack Format = "msgpack"
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cbor":
		return FormatCBOR, nil
	case ".msgpack", ".mpk":
		return FormatMsgpack, nil
	}
	return "", errors.InvalidInput(errors.PhaseConvert, fmt.Sprintf("%s: unknown snapshot format (want .cbor, .msgpack or .mpk)", path))
}

type Snapshot struct {
	Version int    `cbor:"version" msgpack:"version"`
	Profile string `cbor:"profile" msgpack:"profile"`
	// Source describes where the root came from, such as the evaluated
	// expression.
	Source string        `cbor:"source,omitempty" msgpack:"source,omitempty"`
	Root   *convert.Node `cbor:"root" msgpack:"root"`
}

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Take decodes the graph reachable from v into a snapshot.
func Take(ctx context.Context, rt *runtime.Runtime, v jlvalue.Value, source string) (*Snapshot, error) {
	root, err := convert.NewDecoder(rt).Decode(ctx, v)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Version: Version,
		Profile: rt.Layout().Name,
		Source:  source,
		Root:    root,
	}, nil
}

// Encode writes s to w.
func Encode(w io.Writer, s *Snapshot, f Format) error {
	var err error
	switch f {
	case FormatCBOR:
		err = encMode.NewEncoder(w).Encode(s)
	case FormatMsgpack:
		err = msgpack.NewEncoder(w).Encode(s)
	default:
		return errors.InvalidInput(errors.PhaseConvert, fmt.Sprintf("unknown snapshot format %q", f))
	}
	if err != nil {
		return errors.Wrap(errors.PhaseConvert, errors.KindInvalidData, err, "encode snapshot")
	}
	return nil
}

// Decode reads one snapshot from r.
func Decode(r io.Reader, f Format) (*Snapshot, error) {
	var s Snapshot
	var err error
	switch f {
	case FormatCBOR:
		err = cbor.NewDecoder(r).Decode(&s)
	case FormatMsgpack:
		err = msgpack.NewDecoder(r).Decode(&s)
	default:
		return nil, errors.InvalidInput(errors.PhaseConvert, fmt.Sprintf("unknown snapshot format %q", f))
	}
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConvert, errors.KindInvalidData, err, "decode snapshot")
	}
	if s.Version < 1 || s.Version > Version {
		return nil, errors.InvalidData(errors.PhaseConvert, nil,
			fmt.Sprintf("snapshot version %d not supported (want 1..%d)", s.Version, Version))
	}
	return &s, nil
}

func Marshal(s *Snapshot, f Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, s, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func Unmarshal(data []byte, f Format) (*Snapshot, error) {
	return Decode(bytes.NewReader(data), f)
}

// Save writes s to path atomically, choosing the format by extension.
func Save(path string, s *Snapshot) (err error) {
	f, err := FormatOf(path)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if err = Encode(tmp, s, f); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Load reads a snapshot file, choosing the format by extension.
func Load(path string) (*Snapshot, error) {
	f, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Decode(file, f)
}
