// Package manifest acquires a modpack archive and parses the manifest
// it carries.
package manifest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/packup/packup/pkg/archive"
	"github.com/packup/packup/pkg/errors"
	"github.com/packup/packup/pkg/fetch"
	"github.com/packup/packup/pkg/logging"
	"github.com/packup/packup/pkg/types"
)

const (
	// EntryName is the manifest entry expected inside the pack archive.
	EntryName = "manifest.json"

	// packArchiveName is the filename used when the pack is fetched
	// from a URL into the scratch directory.
	packArchiveName = "modpack.zip"

	// loaderIDPrefix marks the mod loader ids packup understands.
	loaderIDPrefix = "forge-"
)

// ModLoader is one modLoaders entry of the manifest.
type ModLoader struct {
	ID      string `json:"id"`
	Primary bool   `json:"primary"`
}

// Minecraft is the platform block of the manifest.
type Minecraft struct {
	Version    string      `json:"version"`
	ModLoaders []ModLoader `json:"modLoaders"`
}

// Manifest is the parsed, read-only description of one pack. It is
// parsed once at run start and never mutated.
type Manifest struct {
	Name            string                 `json:"name"`
	Version         string                 `json:"version"`
	Author          string                 `json:"author"`
	ManifestType    string                 `json:"manifestType"`
	ManifestVersion int                    `json:"manifestVersion"`
	Minecraft       Minecraft              `json:"minecraft"`
	Files           []types.FileDescriptor `json:"files"`
	DirectDownload  []types.DirectDownload `json:"directDownload"`
	Overrides       string                 `json:"overrides"`
}

// Load acquires the pack archive from a local path or URL and parses
// its manifest. The caller owns the returned archive and must close it.
func Load(ctx context.Context, pathOrURL, scratchDir string, fetcher *fetch.Fetcher) (*Manifest, *archive.Archive, error) {
	logger := logging.GetLogger("manifest")

	packPath := pathOrURL
	if _, err := os.Stat(pathOrURL); err == nil {
		logger.Info().Str("path", packPath).Msg("Found local modpack")
	} else {
		logger.Info().Str("url", pathOrURL).Msg("Downloading modpack")
		if _, _, err := fetcher.Transfer(ctx, pathOrURL, scratchDir, packArchiveName); err != nil {
			return nil, nil, errors.Wrapf(err, errors.ErrManifestFetch, "cannot download modpack from %s", pathOrURL)
		}
		packPath = filepath.Join(scratchDir, packArchiveName)
	}

	ar, err := archive.Open(packPath)
	if err != nil {
		return nil, nil, err
	}

	m, err := parse(ar)
	if err != nil {
		_ = ar.Close()
		return nil, nil, err
	}

	logger.Info().Str("pack", m.Name).Str("version", m.Version).Msg("Loaded manifest")
	return m, ar, nil
}

func parse(ar *archive.Archive) (*Manifest, error) {
	data, err := ar.ReadFile(EntryName)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrManifestParse, "archive has no %s", EntryName)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(err, errors.ErrManifestParse, "cannot parse %s", EntryName)
	}
	return &m, nil
}

// LoaderVersions returns the platform version and the first matching
// loader version declared by the manifest. ok is false when either is
// missing.
func (m *Manifest) LoaderVersions() (mcVersion, loaderVersion string, ok bool) {
	mcVersion = m.Minecraft.Version
	for _, l := range m.Minecraft.ModLoaders {
		if strings.HasPrefix(l.ID, loaderIDPrefix) {
			loaderVersion = strings.TrimPrefix(l.ID, loaderIDPrefix)
			break
		}
	}
	return mcVersion, loaderVersion, mcVersion != "" && loaderVersion != ""
}
