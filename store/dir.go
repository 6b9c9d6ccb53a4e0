package store

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// entrySuffix and hashedSuffix mark files owned by a Dir store; anything
// else in the directory is ignored.
const (
	entrySuffix  = ".entry"
	hashedSuffix = ".hashed"
)

// maxNameLen is the common file name limit (ext4, APFS, NTFS).
const maxNameLen = 255

// Dir is a Store where every key is a file inside a single directory. File
// names are the base64url encoding of the key, so arbitrary keys map to valid
// names and can be decoded again for enumeration. A key whose encoded name
// would exceed maxNameLen is stored under the hex SHA-256 of the key instead,
// with the encoded key on the file's first line. No file handle is held
// between calls.
//
// Keys enumerate in lexical order of their encoded file names.
type Dir struct {
	root string
}

// NewDir creates (if needed) and opens the directory at root.
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Dir{root: root}, nil
}

// entryName returns the file name for key and whether it is a hashed name.
func entryName(key string) (string, bool) {
	n := base64.RawURLEncoding.EncodeToString([]byte(key)) + entrySuffix
	if len(n) <= maxNameLen {
		return n, false
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:]) + hashedSuffix, true
}

// readHashed splits a hashed file into its key header and value.
func readHashed(path string) (encKey, value string, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	encKey, value, ok := strings.Cut(string(b), "\n")
	if !ok {
		return "", "", errors.New("store: hashed entry without key header")
	}
	return encKey, value, nil
}

// entries lists the encoded file names in directory order (os.ReadDir sorts
// by name).
func (d *Dir) entries() ([]string, error) {
	des, err := os.ReadDir(d.root)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(des))
	for _, de := range des {
		if de.IsDir() || !(strings.HasSuffix(de.Name(), entrySuffix) || strings.HasSuffix(de.Name(), hashedSuffix)) {
			continue
		}
		names = append(names, de.Name())
	}
	return names, nil
}

func (d *Dir) Len(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	names, err := d.entries()
	if err != nil {
		return 0, err
	}
	return len(names), nil
}

func (d *Dir) Key(ctx context.Context, index int) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	names, err := d.entries()
	if err != nil {
		return "", false, err
	}
	if index < 0 || index >= len(names) {
		return "", false, nil
	}
	enc := strings.TrimSuffix(names[index], entrySuffix)
	if strings.HasSuffix(names[index], hashedSuffix) {
		if enc, _, err = readHashed(filepath.Join(d.root, names[index])); err != nil {
			return "", false, err
		}
	}
	raw, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		return "", false, err
	}
	return string(raw), true, nil
}

func (d *Dir) GetItem(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	n, hashed := entryName(key)
	path := filepath.Join(d.root, n)
	if hashed {
		enc, value, err := readHashed(path)
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		if err != nil {
			return "", false, err
		}
		if enc != base64.RawURLEncoding.EncodeToString([]byte(key)) {
			return "", false, nil
		}
		return value, true, nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(b), true, nil
}

// SetItem writes to a temporary file and renames it into place so readers
// never observe a partially written value.
func (d *Dir) SetItem(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, hashed := entryName(key)
	if hashed {
		value = base64.RawURLEncoding.EncodeToString([]byte(key)) + "\n" + value
	}
	tmp, err := os.CreateTemp(d.root, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(d.root, n)); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}

func (d *Dir) RemoveItem(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, _ := entryName(key)
	err := os.Remove(filepath.Join(d.root, n))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (d *Dir) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	names, err := d.entries()
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := os.Remove(filepath.Join(d.root, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}
