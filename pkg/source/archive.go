package source

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"path"
	"sort"

	units "github.com/docker/go-units"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// MaxArchiveSize is the size above which a source archive is suspicious:
// source trees are small, data files are not.
const MaxArchiveSize = 5 * units.MiB

// CompressDir archives dir into a tar.gz at target. Members are rooted
// at the directory's base name and written in sorted order so archives
// are reproducible.
func CompressDir(fs afero.Fs, log *zap.Logger, dir, target string) error {
	files, err := GlobAll(fs, dir)
	if err != nil {
		return err
	}
	sort.Strings(files)

	out, err := fs.Create(target)
	if err != nil {
		return err
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)
	base := path.Base(dir)

	for _, rel := range files {
		if err := addMember(fs, tw, path.Join(dir, rel), path.Join(base, rel)); err != nil {
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	info, err := fs.Stat(target)
	if err != nil {
		return err
	}
	if info.Size() > MaxArchiveSize {
		log.Warn("source archive is large, it likely includes data files",
			zap.String("archive", target),
			zap.String("size", units.HumanSize(float64(info.Size()))),
			zap.String("limit", units.HumanSize(float64(MaxArchiveSize))))
	}
	return nil
}

func addMember(fs afero.Fs, tw *tar.Writer, p, name string) error {
	info, err := fs.Stat(p)
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = name
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	f, err := fs.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(tw, f)
	return err
}
