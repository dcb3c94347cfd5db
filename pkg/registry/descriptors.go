// Package registry loads protobuf descriptor sets from a schema registry and
// notifies listeners when they change.
package registry

import (
	"crypto/sha256"
	"encoding/hex"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/ajitpratap0/nebula-sink/pkg/errors"
)

// Descriptors is an immutable snapshot of the registry.
type Descriptors struct {
	files       *protoregistry.Files
	fingerprint string
}

// Build decodes and links one or more serialized FileDescriptorSets. When a
// file appears in several sets the first occurrence wins.
func Build(sets ...[]byte) (*Descriptors, error) {
	merged := &descriptorpb.FileDescriptorSet{}
	seen := make(map[string]bool)
	h := sha256.New()
	for i, raw := range sets {
		h.Write(raw)
		var set descriptorpb.FileDescriptorSet
		if err := proto.Unmarshal(raw, &set); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode descriptor set").
				WithDetail("source", i)
		}
		for _, f := range set.GetFile() {
			if seen[f.GetName()] {
				continue
			}
			seen[f.GetName()] = true
			merged.File = append(merged.File, f)
		}
	}

	files, err := protodesc.NewFiles(merged)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to link descriptor set")
	}
	return &Descriptors{files: files, fingerprint: hex.EncodeToString(h.Sum(nil))}, nil
}

// Fingerprint identifies the raw bytes the snapshot was built from.
func (d *Descriptors) Fingerprint() string {
	return d.fingerprint
}

// FindMessage resolves a fully-qualified message name.
func (d *Descriptors) FindMessage(fullName string) (protoreflect.MessageDescriptor, error) {
	desc, err := d.files.FindDescriptorByName(protoreflect.FullName(fullName))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "schema not found in registry").
			WithDetail("schema", fullName)
	}
	md, ok := desc.(protoreflect.MessageDescriptor)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "%s is not a message type", fullName)
	}
	return md, nil
}

// Files exposes the linked files.
func (d *Descriptors) Files() *protoregistry.Files {
	return d.files
}
