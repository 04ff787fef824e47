//go:build cgo

package embeddings

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"
)

// onnxRuntimeVersion is the release fastembed-go's onnxruntime_go binding
// is built against.
const onnxRuntimeVersion = "1.23.0"

const onnxReleaseBase = "https://github.com/microsoft/onnxruntime/releases/download"

// ErrUnsupportedPlatform indicates no ONNX runtime release exists for the
// current OS/arch.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// onnxRuntime locates the ONNX runtime shared library, installing it under
// the embeddings cache directory when it is missing.
type onnxRuntime struct {
	dir          string
	goos, goarch string
	releaseBase  string
	client       *http.Client
	logger       *zap.Logger
}

func newONNXRuntime(cacheDir string, logger *zap.Logger) *onnxRuntime {
	return &onnxRuntime{
		dir:         filepath.Join(cacheDir, "onnxruntime"),
		goos:        runtime.GOOS,
		goarch:      runtime.GOARCH,
		releaseBase: onnxReleaseBase,
		client:      http.DefaultClient,
		logger:      logger,
	}
}

// archive returns the release archive stem, e.g. onnxruntime-linux-x64-1.23.0.
func (r *onnxRuntime) archive() (string, error) {
	var platform string
	switch r.goos + "/" + r.goarch {
	case "linux/amd64":
		platform = "linux-x64"
	case "linux/arm64":
		platform = "linux-aarch64"
	case "darwin/amd64":
		platform = "osx-x86_64"
	case "darwin/arm64":
		platform = "osx-arm64"
	default:
		return "", fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, r.goos, r.goarch)
	}
	return "onnxruntime-" + platform + "-" + onnxRuntimeVersion, nil
}

func (r *onnxRuntime) library() string {
	if r.goos == "darwin" {
		return "libonnxruntime.dylib"
	}
	return "libonnxruntime.so"
}

// installed returns ONNX_PATH when set, else the library under dir, else "".
func (r *onnxRuntime) installed() string {
	if p := os.Getenv("ONNX_PATH"); p != "" {
		return p
	}
	p := filepath.Join(r.dir, r.library())
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

// ensure returns the library path, downloading the runtime first if needed.
func (r *onnxRuntime) ensure(ctx context.Context) (string, error) {
	if p := r.installed(); p != "" {
		return p, nil
	}

	archive, err := r.archive()
	if err != nil {
		return "", err
	}
	r.logger.Info("ONNX runtime not found, downloading",
		zap.String("archive", archive),
		zap.String("dir", r.dir),
	)
	if err := r.install(ctx, archive); err != nil {
		return "", fmt.Errorf("installing ONNX runtime (set ONNX_PATH to use an existing library): %w", err)
	}

	p := filepath.Join(r.dir, r.library())
	r.logger.Info("ONNX runtime installed", zap.String("path", p))
	return p, nil
}

func (r *onnxRuntime) install(ctx context.Context, archive string) error {
	url := fmt.Sprintf("%s/v%s/%s.tgz", r.releaseBase, onnxRuntimeVersion, archive)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading %s: status %d", url, resp.StatusCode)
	}

	if err := os.MkdirAll(r.dir, 0o700); err != nil {
		return err
	}
	return r.extract(resp.Body, archive)
}

// extract copies the entries of <archive>/lib/ into dir, flattened. Symlinks
// are recreated so versioned sonames resolve.
func (r *onnxRuntime) extract(src io.Reader, archive string) error {
	gz, err := gzip.NewReader(src)
	if err != nil {
		return err
	}
	defer gz.Close()

	prefix := archive + "/lib/"
	lib := r.library()
	found := false

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading archive: %w", err)
		}

		name := strings.TrimPrefix(hdr.Name, "./")
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		base := path.Base(name)
		dest := filepath.Join(r.dir, base)

		switch hdr.Typeflag {
		case tar.TypeSymlink:
			_ = os.Remove(dest)
			if err := os.Symlink(hdr.Linkname, dest); err != nil {
				return fmt.Errorf("linking %s: %w", base, err)
			}
		case tar.TypeReg:
			if err := writeFile(dest, tr); err != nil {
				return fmt.Errorf("writing %s: %w", base, err)
			}
		default:
			continue
		}
		if base == lib || strings.HasPrefix(base, lib+".") {
			found = true
		}
	}

	if !found {
		return fmt.Errorf("%s not found in %s", lib, archive)
	}
	return nil
}

func writeFile(dest string, src io.Reader) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// setONNXPathEnv points fastembed-go at the library.
var setONNXPathEnv = func(path string) error {
	return os.Setenv("ONNX_PATH", path)
}
