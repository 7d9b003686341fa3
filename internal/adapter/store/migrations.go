package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"zotindex/internal/domain"
)

// CurrentSchemaVersion is the per-collection storage format version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var (
	keySchemaVersion = []byte("schema_version")
	keyBinding       = []byte("binding")
	keyBindingHash   = []byte("binding_hash")
)

// SchemaInfo is the metadata stored with each collection.
type SchemaInfo struct {
	Version     int
	Binding     domain.ProviderBinding
	BindingHash string
}

func newSchemaInfo(b domain.ProviderBinding) *SchemaInfo {
	return &SchemaInfo{Version: CurrentSchemaVersion, Binding: b, BindingHash: ComputeBindingHash(b)}
}

// ComputeBindingHash fingerprints a provider binding. A stored hash that no
// longer matches its binding means the meta bucket was tampered with.
func ComputeBindingHash(b domain.ProviderBinding) string {
	data, _ := json.Marshal(b)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}

func readSchemaInfo(meta *bbolt.Bucket) (*SchemaInfo, error) {
	if meta == nil {
		return nil, fmt.Errorf("collection has no meta bucket")
	}
	var info SchemaInfo
	if data := meta.Get(keySchemaVersion); data != nil {
		if err := json.Unmarshal(data, &info.Version); err != nil {
			return nil, fmt.Errorf("invalid schema version: %w", err)
		}
	}
	data := meta.Get(keyBinding)
	if data == nil {
		return nil, fmt.Errorf("collection has no provider binding")
	}
	if err := json.Unmarshal(data, &info.Binding); err != nil {
		return nil, fmt.Errorf("invalid provider binding: %w", err)
	}
	info.BindingHash = string(meta.Get(keyBindingHash))
	return &info, nil
}

func writeSchemaInfo(meta *bbolt.Bucket, info *SchemaInfo) error {
	versionData, err := json.Marshal(info.Version)
	if err != nil {
		return err
	}
	if err := meta.Put(keySchemaVersion, versionData); err != nil {
		return err
	}
	bindingData, err := json.Marshal(info.Binding)
	if err != nil {
		return err
	}
	if err := meta.Put(keyBinding, bindingData); err != nil {
		return err
	}
	return meta.Put(keyBindingHash, []byte(info.BindingHash))
}

// MigrationResult describes the result of a migration check.
type MigrationResult struct {
	NeedsMigration bool
	OldVersion     int
	NewVersion     int
	Reason         string
}

// CheckMigration compares a collection's stored schema with this build.
func CheckMigration(info *SchemaInfo) (*MigrationResult, error) {
	result := &MigrationResult{OldVersion: info.Version, NewVersion: CurrentSchemaVersion}

	switch {
	case info.Version > CurrentSchemaVersion:
		return nil, fmt.Errorf("collection created by newer version (v%d > v%d)", info.Version, CurrentSchemaVersion)
	case info.Version < CurrentSchemaVersion:
		result.NeedsMigration = true
		result.Reason = fmt.Sprintf("schema upgrade from v%d to v%d", info.Version, CurrentSchemaVersion)
	}

	if info.BindingHash != "" && info.BindingHash != ComputeBindingHash(info.Binding) {
		return nil, fmt.Errorf("provider binding does not match its hash")
	}
	if info.BindingHash == "" {
		result.NeedsMigration = true
		result.Reason = "recording binding hash"
	}
	return result, nil
}

// migrate upgrades the collection in place inside the caller's transaction.
func migrate(col *bbolt.Bucket, info *SchemaInfo) error {
	result, err := CheckMigration(info)
	if err != nil {
		return err
	}
	if !result.NeedsMigration {
		return nil
	}

	for v := info.Version; v < CurrentSchemaVersion; v++ {
		if err := runMigration(col, v, v+1); err != nil {
			return fmt.Errorf("migration from v%d to v%d failed: %w", v, v+1, err)
		}
	}
	return writeSchemaInfo(col.Bucket(bucketMeta), newSchemaInfo(info.Binding))
}

func runMigration(col *bbolt.Bucket, from, to int) error {
	switch {
	case from == 0 && to == 1:
		// v0 collections predate the split vectors bucket.
		_, err := col.CreateBucketIfNotExists(bucketVectors)
		return err
	default:
		return nil
	}
}
