package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/allbin/go-serial-autotest/internal/shell"
)

// ImageManager keeps OS images in Dir and writes them to the SD card
// device with dd.
type ImageManager struct {
	Dir      string
	Device   string
	DDParams []string
	Sudo     bool
	Client   *http.Client
	Runner   shell.Runner
	Log      zerolog.Logger
}

// ImagePath is the local file for the named OS image.
func (m *ImageManager) ImagePath(name string) string {
	dir := m.Dir
	if dir == "" {
		dir = "./images"
	}
	safe := strings.NewReplacer("/", "_", " ", "_").Replace(name)
	return filepath.Join(dir, safe+".img")
}

// Download fetches url into ImagePath(name) unless the file already exists.
func (m *ImageManager) Download(ctx context.Context, name, url string) (string, error) {
	path := m.ImagePath(name)
	if _, err := os.Stat(path); err == nil {
		m.Log.Info().Str("image", name).Str("path", path).Msg("image already present, skipping download")
		return path, nil
	}
	if url == "" {
		return "", &ProvisioningError{Step: StepDownload, Err: fmt.Errorf("no url for image %q", name)}
	}

	m.Log.Info().Str("image", name).Str("url", url).Msg("downloading image")
	n, err := m.fetch(ctx, url, path)
	if err != nil {
		return "", &ProvisioningError{Step: StepDownload, Err: err}
	}
	m.Log.Info().Str("image", name).Int64("bytes", n).Msg("image downloaded")
	return path, nil
}

func (m *ImageManager) fetch(ctx context.Context, url, path string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	client := m.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("GET %s: %s", url, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".part-*")
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return n, err
	}
	// an interrupted download must never look like a cached image
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return n, err
	}
	return n, nil
}

// Flash writes the named image to Device.
func (m *ImageManager) Flash(ctx context.Context, name string) error {
	if m.Device == "" {
		return &ProvisioningError{Step: StepFlash, Err: errors.New("no flash device configured")}
	}
	path := m.ImagePath(name)
	if _, err := os.Stat(path); err != nil {
		return &ProvisioningError{Step: StepFlash, Err: err}
	}

	tool := "dd"
	args := append([]string{"if=" + path, "of=" + m.Device}, m.DDParams...)
	if m.Sudo {
		args = append([]string{tool}, args...)
		tool = "sudo"
	}

	m.Log.Info().Str("image", name).Str("device", m.Device).Strs("dd_params", m.DDParams).Msg("flashing image")
	res, err := runner(m.Runner, m.Log).Run(ctx, tool, args...)
	if err != nil {
		return &ProvisioningError{Step: StepFlash, Err: fmt.Errorf("dd: %w", err)}
	}
	if res.ExitCode != 0 {
		return &ProvisioningError{Step: StepFlash, Err: exitError("dd", res)}
	}
	m.Log.Info().Str("image", name).Dur("duration", res.Duration).Msg("image flashed")
	return nil
}
