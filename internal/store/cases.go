package store

import (
	"crypto/rand"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/san-kum/trussopt/internal/codec"
	"github.com/san-kum/trussopt/internal/model"
	"github.com/san-kum/trussopt/internal/optimize"
)

type CaseStore struct {
	baseDir string
}

func NewCaseStore(baseDir string) *CaseStore {
	return &CaseStore{baseDir: baseDir}
}

func (s *CaseStore) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// CaseMeta is the summary record written to metadata.json.
type CaseMeta struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
	Optimizer   string    `json:"optimizer,omitempty"`
	StopReason  string    `json:"stop_reason,omitempty"`
	Iterations  int       `json:"iterations"`
	NodesActive int       `json:"nodes_active"`
	NodesTotal  int       `json:"nodes_total"`
}

// Save writes a new case directory and returns its id. history may be
// nil for structures that have not been optimized yet.
func (s *CaseStore) Save(name, optimizer string, st *model.Structure, history *optimize.History) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "unnamed"
	}
	id := newCaseID()
	dir := filepath.Join(s.baseDir, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	meta := CaseMeta{
		ID:          id,
		Name:        name,
		CreatedAt:   time.Now().UTC(),
		Optimizer:   optimizer,
		NodesActive: st.ActiveNodeCount(),
		NodesTotal:  len(st.Nodes),
	}
	if history != nil {
		meta.StopReason = string(history.StopReason)
		meta.Iterations = history.Iterations()
	}
	if err := writeJSON(filepath.Join(dir, "metadata.json"), meta); err != nil {
		return "", err
	}

	f, err := os.Create(filepath.Join(dir, "structure.json"))
	if err != nil {
		return "", err
	}
	if err := codec.Encode(f, st); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	if history != nil {
		if err := writeHistoryCSV(filepath.Join(dir, "history.csv"), history); err != nil {
			return "", err
		}
	}
	return id, nil
}

// List returns the metadata of every case, newest first.
func (s *CaseStore) List() ([]CaseMeta, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []CaseMeta{}, nil
		}
		return nil, err
	}
	metas := make([]CaseMeta, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name(), "metadata.json"))
		if err != nil {
			continue
		}
		var meta CaseMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		metas = append(metas, meta)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].CreatedAt.After(metas[j].CreatedAt) })
	return metas, nil
}

// Load reads a case back. The history is nil when the case was saved
// without one.
func (s *CaseStore) Load(id string) (*model.Structure, *optimize.History, *CaseMeta, error) {
	dir := filepath.Join(s.baseDir, id)
	data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("case %s: %w", id, err)
	}
	var meta CaseMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, nil, nil, fmt.Errorf("case %s: %w", id, err)
	}

	f, err := os.Open(filepath.Join(dir, "structure.json"))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("case %s: %w", id, err)
	}
	st, err := codec.Decode(f)
	f.Close()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("case %s: %w", id, err)
	}

	history, err := readHistoryCSV(filepath.Join(dir, "history.csv"))
	if err != nil {
		if os.IsNotExist(err) {
			history = nil
		} else {
			return nil, nil, nil, fmt.Errorf("case %s: %w", id, err)
		}
	}
	if history != nil {
		history.StopReason = optimize.StopReason(meta.StopReason)
	}
	return st, history, &meta, nil
}

// Delete removes a case directory. It reports false when the case does
// not exist.
func (s *CaseStore) Delete(id string) (bool, error) {
	dir := filepath.Join(s.baseDir, id)
	if _, err := os.Stat(filepath.Join(dir, "metadata.json")); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, os.RemoveAll(dir)
}

func newCaseID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("case_%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("case_%d_%s", time.Now().Unix(), hex.EncodeToString(b[:4]))
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var historyHeader = []string{
	"iter", "mass_fraction", "removed", "max_displacement",
	"omega1", "f1", "freq_distance",
	"compliance", "volume_fraction", "area_change",
}

func writeHistoryCSV(path string, h *optimize.History) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write(historyHeader); err != nil {
		return err
	}
	at := func(s []float64, i int) string {
		if i >= len(s) {
			return ""
		}
		return strconv.FormatFloat(s[i], 'g', -1, 64)
	}
	for i := 0; i < h.Iterations(); i++ {
		removed := ""
		if i < len(h.RemovedPerIter) {
			removed = strconv.Itoa(h.RemovedPerIter[i])
		}
		row := []string{
			strconv.Itoa(i),
			at(h.MassFraction, i),
			removed,
			at(h.MaxDisplacement, i),
			at(h.Omega1, i),
			at(h.F1, i),
			at(h.FreqDistance, i),
			at(h.Compliance, i),
			at(h.VolumeFraction, i),
			at(h.AreaChange, i),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func readHistoryCSV(path string) (*optimize.History, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return &optimize.History{}, nil
	}

	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		col[name] = i
	}
	h := &optimize.History{}
	appendFloat := func(dst *[]float64, record []string, name string) {
		i, ok := col[name]
		if !ok || i >= len(record) || record[i] == "" {
			return
		}
		v, err := strconv.ParseFloat(record[i], 64)
		if err != nil {
			return
		}
		*dst = append(*dst, v)
	}
	for _, record := range records[1:] {
		appendFloat(&h.MassFraction, record, "mass_fraction")
		appendFloat(&h.MaxDisplacement, record, "max_displacement")
		appendFloat(&h.Omega1, record, "omega1")
		appendFloat(&h.F1, record, "f1")
		appendFloat(&h.FreqDistance, record, "freq_distance")
		appendFloat(&h.Compliance, record, "compliance")
		appendFloat(&h.VolumeFraction, record, "volume_fraction")
		appendFloat(&h.AreaChange, record, "area_change")
		if i, ok := col["removed"]; ok && i < len(record) && record[i] != "" {
			if n, err := strconv.Atoi(record[i]); err == nil {
				h.RemovedPerIter = append(h.RemovedPerIter, n)
			}
		}
	}
	return h, nil
}
