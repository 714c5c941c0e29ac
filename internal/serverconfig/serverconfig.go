// Package serverconfig prepares the game server's JSON config file before
// launch. Older server builds used different key spellings; each logical
// setting lists the spellings it may appear under, and the first one found
// is moved to the canonical key.
package serverconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"

	"github.com/dmitrijs2005/sessionkeeper/internal/filex"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
)

// FieldSpec is one logical setting. Candidates are checked in order; the
// canonical name is always checked first.
type FieldSpec struct {
	Canonical  string
	Candidates []string
}

var (
	ServerName = FieldSpec{Canonical: "ServerName", Candidates: []string{"serverName", "server_name", "Name"}}
	Password   = FieldSpec{Canonical: "Password", Candidates: []string{"password", "ServerPassword"}}
	MaxPlayers = FieldSpec{Canonical: "MaxPlayers", Candidates: []string{"maxPlayers", "max_players", "PlayerLimit"}}
	ViewRadius = FieldSpec{Canonical: "MaxViewRadius", Candidates: []string{"ViewDistance", "viewDistance", "view_distance"}}
)

// Fields lists every setting that is migrated.
var Fields = []FieldSpec{ServerName, Password, MaxPlayers, ViewRadius}

// Resolve finds the key the setting currently uses in doc.
func (f FieldSpec) Resolve(doc map[string]any) (key string, value any, ok bool) {
	if v, ok := doc[f.Canonical]; ok {
		return f.Canonical, v, true
	}
	for _, k := range f.Candidates {
		if v, ok := doc[k]; ok {
			return k, v, true
		}
	}
	return f.Canonical, nil, false
}

// Settings are values from the environment. Zero values leave the file as
// it is.
type Settings struct {
	ServerName string
	Password   string
	MaxPlayers int
	ViewRadius int
}

// Defaults fill settings the file does not have at all.
var Defaults = map[string]any{
	ServerName.Canonical: "Game Server",
	MaxPlayers.Canonical: 20,
	ViewRadius.Canonical: 12,
}

// Ensure creates or updates the config at path: legacy keys are renamed,
// missing settings get defaults, and non-zero settings overwrite the file.
// Keys this package does not know are kept. The file is only rewritten when
// something changed.
func Ensure(ctx context.Context, path string, s Settings, logger logging.Logger) error {
	logger = logging.Or(logger)

	doc, err := read(path)
	if err != nil {
		return err
	}
	before := clone(doc)

	for _, field := range Fields {
		key, value, ok := field.Resolve(doc)
		if ok && key != field.Canonical {
			delete(doc, key)
			doc[field.Canonical] = value
			logger.Info(ctx, "renamed server config key", "from", key, "to", field.Canonical)
		}
		if !ok {
			if def, has := Defaults[field.Canonical]; has {
				doc[field.Canonical] = def
			}
		}
	}

	if s.ServerName != "" {
		doc[ServerName.Canonical] = s.ServerName
	}
	if s.Password != "" {
		doc[Password.Canonical] = s.Password
	}
	if s.MaxPlayers > 0 {
		doc[MaxPlayers.Canonical] = s.MaxPlayers
	}
	if s.ViewRadius > 0 {
		doc[ViewRadius.Canonical] = s.ViewRadius
	}

	if before != nil && reflect.DeepEqual(normalize(before), normalize(doc)) {
		logger.Debug(ctx, "server config unchanged", "path", path)
		return nil
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode server config: %w", err)
	}
	if err := filex.EnsureDir(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create server config dir: %w", err)
	}
	if err := filex.WriteAtomic(path, append(data, '\n'), filex.WriteOptions{Perm: 0o644}); err != nil {
		return fmt.Errorf("write server config: %w", err)
	}

	logger.Info(ctx, "server config written", "path", path)
	return nil
}

// read returns the parsed document, or an empty one when the file does not
// exist.
func read(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read server config: %w", err)
	}

	doc := map[string]any{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("server config %s is not a json object: %w", path, err)
	}
	return doc, nil
}

func clone(doc map[string]any) map[string]any {
	if len(doc) == 0 {
		return nil
	}
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

// normalize round-trips through JSON so ints and float64s compare equal.
func normalize(doc map[string]any) map[string]any {
	data, _ := json.Marshal(doc)
	out := map[string]any{}
	_ = json.Unmarshal(data, &out)
	return out
}
