package assets

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// DefaultPublicPath is where FileServer is mounted.
const DefaultPublicPath = "/assets/"

type entrypoint struct {
	JS  []string `json:"js"`
	CSS []string `json:"css"`
}

// Manifest maps bundle entry names to the files webpack emitted for them. A
// nil *Manifest is valid and resolves nothing.
type Manifest struct {
	publicPath  string
	entrypoints map[string]entrypoint
}

// LoadManifest reads a webpack-assets-manifest file written with
// entrypoints enabled. Both the flat ({"main": {"js": [...]}}) and the nested
// ({"main": {"assets": {"js": [...]}}}) entrypoint layouts are accepted.
func LoadManifest(path, publicPath string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read asset manifest: %w", err)
	}
	return ParseManifest(data, publicPath)
}

func ParseManifest(data []byte, publicPath string) (*Manifest, error) {
	var raw struct {
		Entrypoints map[string]json.RawMessage `json:"entrypoints"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse asset manifest: %w", err)
	}

	if publicPath == "" {
		publicPath = DefaultPublicPath
	}
	m := &Manifest{
		publicPath:  publicPath,
		entrypoints: make(map[string]entrypoint, len(raw.Entrypoints)),
	}
	for name, body := range raw.Entrypoints {
		var nested struct {
			Assets *entrypoint `json:"assets"`
		}
		if err := json.Unmarshal(body, &nested); err != nil {
			return nil, fmt.Errorf("entrypoint %s: %w", name, err)
		}
		if nested.Assets != nil {
			m.entrypoints[name] = *nested.Assets
			continue
		}

		var flat entrypoint
		if err := json.Unmarshal(body, &flat); err != nil {
			return nil, fmt.Errorf("entrypoint %s: %w", name, err)
		}
		m.entrypoints[name] = flat
	}
	return m, nil
}

// Scripts returns the script URLs of entry in load order.
func (m *Manifest) Scripts(entry string) []string {
	if m == nil {
		return nil
	}
	return m.urls(m.entrypoints[entry].JS)
}

// Styles returns the stylesheet URLs of entry in load order.
func (m *Manifest) Styles(entry string) []string {
	if m == nil {
		return nil
	}
	return m.urls(m.entrypoints[entry].CSS)
}

func (m *Manifest) urls(files []string) []string {
	if len(files) == 0 {
		return nil
	}
	result := make([]string, 0, len(files))
	for _, file := range files {
		if strings.Contains(file, "://") {
			result = append(result, file)
			continue
		}
		result = append(result, strings.TrimSuffix(m.publicPath, "/")+"/"+strings.TrimPrefix(file, "/"))
	}
	return result
}
