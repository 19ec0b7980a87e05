package blockCodec

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/DataDog/zstd"
	"github.com/pkg/errors"
)

const snapshotLevel = zstd.BestSpeed

// Snapshot writes a zstd compressed copy of a decompressed block to dir/name.zst,
// used to diff blocks between builds.
func Snapshot(dir, name string, b []byte) error {
	if err := os.MkdirAll(dir, 0777); err != nil {
		return err
	}
	comp, err := zstd.CompressLevel(nil, b, snapshotLevel)
	if err != nil {
		return errors.Wrapf(err, "failed to compress snapshot %s", name)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s.zst", name))
	if err := os.WriteFile(path, comp, 0777); err != nil {
		return errors.Wrapf(err, "failed to write snapshot %s", path)
	}
	return nil
}

func ReadSnapshot(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decomp, err := zstd.Decompress(nil, b)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decompress snapshot %s", path)
	}
	return decomp, nil
}
