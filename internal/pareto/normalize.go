package pareto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/tidwall/gjson"
)

// Upload is one file submitted for loading.
type Upload struct {
	Filename string
	Data     []byte
}

// Normalized is a validated front ready for insertion, plus the numeric
// fields that were present in the file itself (before num_genes synthesis).
type Normalized struct {
	Front    Front
	Explicit []string
}

var uploadExtensions = []string{".json.gz", ".json.zst", ".json.zstd", ".json"}

// FrontName derives a display name from an upload filename.
func FrontName(filename string) string {
	base := filepath.Base(filename)
	lower := strings.ToLower(base)
	for _, ext := range uploadExtensions {
		if strings.HasSuffix(lower, ext) {
			return base[:len(base)-len(ext)]
		}
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func decodeUpload(u Upload) ([]byte, error) {
	lower := strings.ToLower(u.Filename)
	switch {
	case strings.HasSuffix(lower, ".json.gz"):
		zr, err := gzip.NewReader(bytes.NewReader(u.Data))
		if err != nil {
			return nil, structural(u.Filename, "invalid gzip stream: %v", err)
		}
		defer zr.Close()
		data, err := io.ReadAll(zr)
		if err != nil {
			return nil, structural(u.Filename, "invalid gzip stream: %v", err)
		}
		return data, nil
	case strings.HasSuffix(lower, ".json.zst"), strings.HasSuffix(lower, ".json.zstd"):
		dec, err := zstd.NewReader(bytes.NewReader(u.Data))
		if err != nil {
			return nil, structural(u.Filename, "invalid zstd stream: %v", err)
		}
		defer dec.Close()
		data, err := io.ReadAll(dec)
		if err != nil {
			return nil, structural(u.Filename, "invalid zstd stream: %v", err)
		}
		return data, nil
	case strings.HasSuffix(lower, ".json"):
		return u.Data, nil
	}
	return nil, structural(u.Filename, "only JSON files are accepted")
}

// Normalize validates one upload and builds its front. mainObjectives is the
// document's established objective list, nil when no front has been loaded
// yet; in that case the front becomes the main front.
func Normalize(u Upload, mainObjectives []string) (Normalized, error) {
	data, err := decodeUpload(u)
	if err != nil {
		return Normalized{}, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !gjson.ValidBytes(data) {
		return Normalized{}, structural(u.Filename, "invalid JSON")
	}

	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return Normalized{}, structural(u.Filename, "not a list or empty")
	}
	items := root.Array()
	if len(items) == 0 {
		return Normalized{}, structural(u.Filename, "not a list or empty")
	}

	records := make([]record, len(items))
	for i, item := range items {
		rec, err := scanRecord(item)
		if err != nil {
			return Normalized{}, structural(u.Filename, "record %d: %v", i+1, err)
		}
		records[i] = rec
	}

	first := records[0]
	if !first.hasGenes {
		return Normalized{}, structural(u.Filename, "missing selected_genes")
	}
	if len(first.numeric) == 0 {
		return Normalized{}, structural(u.Filename, "no numeric objectives")
	}

	explicit := slices.Clone(first.numeric)
	objectives := slices.Clone(first.numeric)
	synthesized := false
	seen := make(map[string]bool, len(records))
	solutions := make([]Solution, len(records))
	for i, rec := range records {
		sol := rec.sol
		if !rec.hasID {
			sol.ID = fmt.Sprintf("Sol_%d", i+1)
		}
		if seen[sol.ID] {
			return Normalized{}, structural(u.Filename, "record %d: duplicate solution_id %q", i+1, sol.ID)
		}
		seen[sol.ID] = true
		if rec.hasGenes {
			if _, ok := sol.Values[FieldNumGenes]; !ok {
				sol.Values[FieldNumGenes] = Int(len(sol.Genes))
				synthesized = true
			}
		}
		solutions[i] = sol
	}
	if synthesized && !slices.Contains(objectives, FieldNumGenes) {
		objectives = append(objectives, FieldNumGenes)
	}

	for i, sol := range solutions {
		for _, name := range objectives {
			if _, ok := sol.Values[name]; !ok {
				return Normalized{}, structural(u.Filename, "record %d: missing objective %q", i+1, name)
			}
		}
	}

	if mainObjectives != nil && !sameSet(objectives, mainObjectives) {
		return Normalized{}, &ObjectiveMismatchError{
			File:     u.Filename,
			Expected: slices.Clone(mainObjectives),
			Got:      objectives,
		}
	}

	return Normalized{
		Front: Front{
			ID:         uuid.NewString(),
			Name:       FrontName(u.Filename),
			Solutions:  solutions,
			Objectives: objectives,
			Visible:    true,
			Main:       mainObjectives == nil,
		},
		Explicit: explicit,
	}, nil
}

type record struct {
	sol      Solution
	numeric  []string
	hasID    bool
	hasGenes bool
}

func parseRecord(data []byte) (record, error) {
	if !gjson.ValidBytes(data) {
		return record{}, errors.New("invalid JSON")
	}
	return scanRecord(gjson.ParseBytes(data))
}

// scanRecord walks one object in field order. Field order matters because
// objectives are taken in encounter order.
func scanRecord(obj gjson.Result) (record, error) {
	if !obj.IsObject() {
		return record{}, errors.New("not an object")
	}
	r := record{sol: Solution{Values: make(map[string]Number)}}
	var scanErr error
	obj.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		switch name {
		case FieldSolutionID:
			switch value.Type {
			case gjson.String:
				r.sol.ID, r.hasID = value.Str, true
			case gjson.Number:
				r.sol.ID, r.hasID = value.Raw, true
			case gjson.Null:
			default:
				scanErr = errors.New("solution_id must be a string")
				return false
			}
			return true
		case FieldGenes:
			if !value.IsArray() {
				scanErr = errors.New("selected_genes must be a list")
				return false
			}
			elems := value.Array()
			genes := make([]string, 0, len(elems))
			dup := make(map[string]bool, len(elems))
			for _, g := range elems {
				if g.Type != gjson.String {
					scanErr = errors.New("selected_genes must contain strings")
					return false
				}
				if dup[g.Str] {
					continue
				}
				dup[g.Str] = true
				genes = append(genes, g.Str)
			}
			r.sol.Genes, r.hasGenes = genes, true
			return true
		case FieldFrontName:
			if value.Type == gjson.String {
				r.sol.FrontName = value.Str
				return true
			}
		case FieldOriginalID:
			if value.Type == gjson.String {
				r.sol.OriginalID = value.Str
				return true
			}
		}

		if value.Type == gjson.Number {
			n, err := parseNumber(value.Raw)
			if err != nil {
				scanErr = err
				return false
			}
			if _, dup := r.sol.Values[name]; !dup {
				r.numeric = append(r.numeric, name)
			}
			r.sol.Values[name] = n
			return true
		}

		if r.sol.Extra == nil {
			r.sol.Extra = make(map[string]json.RawMessage)
		}
		r.sol.Extra[name] = json.RawMessage(value.Raw)
		return true
	})
	return r, scanErr
}

func sameSet(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	other := make(map[string]bool, len(b))
	for _, v := range b {
		if !set[v] {
			return false
		}
		other[v] = true
	}
	return len(set) == len(other)
}
