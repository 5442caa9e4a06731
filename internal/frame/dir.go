package frame

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DarkSuffix marks the dark-pupil image of a pair: "0001.png" is paired
// with "0001_dark.png".
const DarkSuffix = "_dark"

var imageExts = map[string]bool{
	".bmp": true, ".png": true, ".jpg": true, ".jpeg": true, ".tif": true, ".tiff": true,
}

// PairsFromDir lists the images in dir in name order and pairs each light
// image with its dark counterpart when one exists.
func PairsFromDir(dir string) ([][2]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool)
	var lights []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if !imageExts[ext] {
			continue
		}
		present[name] = true
		if !strings.HasSuffix(strings.TrimSuffix(name, filepath.Ext(name)), DarkSuffix) {
			lights = append(lights, name)
		}
	}
	sort.Strings(lights)

	pairs := make([][2]string, 0, len(lights))
	for _, name := range lights {
		ext := filepath.Ext(name)
		dark := strings.TrimSuffix(name, ext) + DarkSuffix + ext
		p := [2]string{filepath.Join(dir, name), ""}
		if present[dark] {
			p[1] = filepath.Join(dir, dark)
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}
