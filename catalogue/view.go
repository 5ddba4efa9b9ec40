// Package catalogue exposes a halo catalogue as lazily loaded, unit-tagged
// arrays grouped by category.
//
// Opening a catalogue reads only its header and field list. Each field is
// classified by a registry.Registry and given a unit from the catalogue's
// unit system and cosmology; its values are read on first access and
// cached for the lifetime of the View:
//
//	view, err := catalogue.Open("halo_0036.properties")
//	if err != nil {
//	    return err
//	}
//	defer view.Close()
//
//	m200, err := view.Get("masses.mass_200crit")
//	if err != nil {
//	    return err
//	}
//	msun, _ := m200.To(units.Msun)
//
// A View is not safe for concurrent use. Arrays it returns are immutable
// and may be shared freely.
package catalogue

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robert-malhotra/go-velociraptor/internal/logging"
	"github.com/robert-malhotra/go-velociraptor/registry"
	"github.com/robert-malhotra/go-velociraptor/units"
)

// Field is the resolved description of one catalogue field.
type Field struct {
	registry.Field
	Len int
	// StoredUnits is the units attribute written with the data, if any.
	StoredUnits string
	Warnings    []registry.Warning
}

// Key returns the accessor of the field, "category.snake_case".
func (f Field) Key() string {
	return string(f.Category) + "." + f.SnakeCase
}

// View is a lazily materialized catalogue.
type View struct {
	src      Source
	meta     Metadata
	fields   []Field
	byKey    map[string]int
	byName   map[string]int
	warnings []registry.Warning
	rows     int

	cache map[string]*units.Array
	mask  []int
	owner bool

	logger     *slog.Logger
	observer   Observer
	strict     bool
	convention registry.Convention
}

// Open opens a VELOCIraptor properties file. See OpenHDF5 for multi-file
// outputs.
func Open(path string, opts ...Option) (*View, error) {
	o := applyOptions(opts)
	src, err := OpenHDF5(path, o.logger)
	if err != nil {
		return nil, err
	}
	v, err := newView(src, o)
	if err != nil {
		src.Close()
		return nil, err
	}
	return v, nil
}

// New builds a view over any Source. The view takes ownership of src and
// closes it on Close.
func New(src Source, opts ...Option) (*View, error) {
	return newView(src, applyOptions(opts))
}

func applyOptions(opts []Option) *options {
	o := &options{observer: NoopObserver{}}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.Discard()
	}
	if o.registry == nil {
		o.registry = registry.Default()
	}
	return o
}

func newView(src Source, o *options) (*View, error) {
	meta := src.Metadata()
	if err := meta.Cosmology.Validate(); err != nil {
		return nil, err
	}

	v := &View{
		src:      src,
		meta:     meta,
		byKey:    make(map[string]int),
		byName:   make(map[string]int),
		cache:    make(map[string]*units.Array),
		owner:    true,
		logger:   o.logger,
		observer: o.observer,
		strict:   o.strict,

		convention: o.convention,
	}

	resolver := registry.NewResolver(o.registry, meta.Units, meta.Cosmology, o.convention)
	for _, info := range src.Fields() {
		rf, warnings := resolver.ResolveOverride(info.Name, registry.Override{HExp: info.HExp, AExp: info.AExp})
		f := Field{Field: rf, Len: info.Len, StoredUnits: info.Units, Warnings: warnings}

		key := f.Key()
		if prev, dup := v.byKey[key]; dup {
			v.logger.Warn("duplicate accessor, keeping the first field",
				"accessor", key, "kept", v.fields[prev].Name, "dropped", f.Name)
			continue
		}
		v.byKey[key] = len(v.fields)
		v.byName[f.Name] = len(v.fields)
		v.fields = append(v.fields, f)
		v.rows = max(v.rows, f.Len)

		for _, w := range warnings {
			v.warnings = append(v.warnings, w)
			v.logger.Warn("field loaded with degraded metadata",
				"field", w.Field, "kind", w.Kind.String(), "detail", w.Detail)
			v.observer.OnWarning(w)
		}
	}
	if meta.NumGroups > 0 {
		v.rows = int(meta.NumGroups)
	}

	v.logger.Debug("opened catalogue",
		"files", len(meta.Files), "fields", len(v.fields), "rows", v.rows,
		"redshift", meta.Cosmology.Redshift(), "warnings", len(v.warnings))
	return v, nil
}

// Close releases the source. Closing a masked view does nothing; the view
// it was derived from owns the source.
func (v *View) Close() error {
	if !v.owner {
		return nil
	}
	return v.src.Close()
}

// Metadata returns the catalogue header.
func (v *View) Metadata() Metadata { return v.meta }

// Cosmology returns the catalogue's cosmology.
func (v *View) Cosmology() units.Cosmology { return v.meta.Cosmology }

// BoxSize returns the side length of the simulation box. Under the
// physical convention the h factor of a comoving catalogue is removed, as
// for other lengths, but the scale factor is not applied: BoxSize cubed is
// the comoving volume that mass functions are normalized by.
func (v *View) BoxSize() (units.Quantity, bool) {
	c := v.meta.Cosmology
	if c.BoxSize == nil {
		return units.Quantity{}, false
	}
	q := *c.BoxSize
	if c.Comoving && v.convention == registry.Physical {
		q.Value *= c.Correction(units.Int(1), units.Int(0))
	}
	return q, true
}

// Len is the number of rows the view exposes.
func (v *View) Len() int {
	if v.mask != nil {
		return len(v.mask)
	}
	return v.rows
}

// Masked reports whether the view was derived with Mask.
func (v *View) Masked() bool { return v.mask != nil }

// Fields lists the field descriptors in file order. No data is read.
func (v *View) Fields() []Field {
	out := make([]Field, len(v.fields))
	copy(out, v.fields)
	return out
}

// FieldByName looks up a field by its stored name.
func (v *View) FieldByName(name string) (Field, bool) {
	i, ok := v.byName[name]
	if !ok {
		return Field{}, false
	}
	return v.fields[i], true
}

// Categories lists the categories that hold at least one field, in the
// order they first appear.
func (v *View) Categories() []registry.Category {
	seen := make(map[registry.Category]bool)
	var out []registry.Category
	for _, f := range v.fields {
		if !seen[f.Category] {
			seen[f.Category] = true
			out = append(out, f.Category)
		}
	}
	return out
}

// Warnings returns the classification and unit misses recorded so far.
func (v *View) Warnings() []registry.Warning {
	out := make([]registry.Warning, len(v.warnings))
	copy(out, v.warnings)
	return out
}

// Get returns a field by its "category.field" accessor, for example
// "masses.mass_200crit". Values pass through float64, so integer columns
// such as IDs above 2^53 are rounded; use Int64s for those.
func (v *View) Get(accessor string) (*units.Array, error) {
	category, name, ok := strings.Cut(accessor, ".")
	if !ok || category == "" || name == "" {
		return nil, fmt.Errorf("%q: %w", accessor, ErrBadAccessor)
	}
	return v.Category(registry.Category(category)).Field(name)
}

// Value returns one row of a field. A cached field is served from the
// cache; otherwise only that row is read and nothing is cached.
func (v *View) Value(accessor string, row int) (units.Quantity, error) {
	f, err := v.lookup(accessor)
	if err != nil {
		return units.Quantity{}, err
	}
	if row < 0 || row >= v.Len() {
		return units.Quantity{}, fmt.Errorf("row %d of %s: %w", row, accessor, ErrMaskRange)
	}
	if arr, ok := v.cache[f.Key()]; ok {
		v.observer.OnCacheHit(f.Key())
		return arr.Quantity(row), nil
	}
	if err := v.checkStrict(f); err != nil {
		return units.Quantity{}, err
	}

	stored := row
	if v.mask != nil {
		stored = v.mask[row]
	}
	start := time.Now()
	vals, err := v.src.ReadFieldRange(f.Name, stored, 1)
	v.observer.OnRead(f.Key(), time.Since(start), err)
	if err != nil {
		return units.Quantity{}, fmt.Errorf("reading %s: %w", f.Key(), err)
	}
	return units.Quantity{Value: vals[0], Unit: f.Unit}, nil
}

// Int64s reads an integer column exactly, bypassing float64 and the cache.
// It fails with ErrNotInteger when the source cannot serve integers or the
// column is stored as floating point.
func (v *View) Int64s(accessor string) ([]int64, error) {
	f, err := v.lookup(accessor)
	if err != nil {
		return nil, err
	}
	if err := v.checkStrict(f); err != nil {
		return nil, err
	}
	src, ok := v.src.(IntegerSource)
	if !ok {
		return nil, fmt.Errorf("%s: %w", f.Key(), ErrNotInteger)
	}

	start := time.Now()
	all, err := src.ReadFieldInt64(f.Name)
	v.observer.OnRead(f.Key(), time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.Key(), err)
	}
	if v.mask == nil {
		return all, nil
	}
	out := make([]int64, len(v.mask))
	for i, row := range v.mask {
		if row >= len(all) {
			return nil, fmt.Errorf("row %d of %s with %d rows: %w", row, f.Name, len(all), ErrMaskRange)
		}
		out[i] = all[row]
	}
	return out, nil
}

func (v *View) lookup(accessor string) (*Field, error) {
	category, name, ok := strings.Cut(accessor, ".")
	if !ok || category == "" || name == "" {
		return nil, fmt.Errorf("%q: %w", accessor, ErrBadAccessor)
	}
	i, ok := v.byKey[category+"."+strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", accessor, ErrFieldNotFound)
	}
	return &v.fields[i], nil
}

func (v *View) checkStrict(f *Field) error {
	if v.strict && len(f.Warnings) > 0 {
		return fmt.Errorf("%s: %w", f.Key(), f.Warnings[0])
	}
	return nil
}

// materialize returns the cached array for f, reading it on a miss.
func (v *View) materialize(f *Field) (*units.Array, error) {
	key := f.Key()
	if arr, ok := v.cache[key]; ok {
		v.observer.OnCacheHit(key)
		return arr, nil
	}
	if err := v.checkStrict(f); err != nil {
		return nil, err
	}
	v.observer.OnCacheMiss(key)

	start := time.Now()
	vals, err := v.read(f)
	elapsed := time.Since(start)
	v.observer.OnRead(key, elapsed, err)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}

	arr := units.NewArray(vals, f.Unit).Named(f.FullName)
	v.cache[key] = arr
	v.logger.Debug("materialized field",
		"field", key, "rows", arr.Len(), "unit", f.Unit.Symbol, "elapsed", elapsed)
	return arr, nil
}

// read fetches the rows the view exposes. Contiguous masks are read as a
// single range.
func (v *View) read(f *Field) ([]float64, error) {
	switch {
	case v.mask == nil:
		return v.src.ReadField(f.Name)
	case len(v.mask) == 0:
		return []float64{}, nil
	case contiguous(v.mask):
		return v.src.ReadFieldRange(f.Name, v.mask[0], len(v.mask))
	}

	all, err := v.src.ReadField(f.Name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(v.mask))
	for i, row := range v.mask {
		if row >= len(all) {
			return nil, fmt.Errorf("row %d of %s with %d rows: %w", row, f.Name, len(all), ErrMaskRange)
		}
		out[i] = all[row]
	}
	return out, nil
}

func contiguous(rows []int) bool {
	for i := 1; i < len(rows); i++ {
		if rows[i] != rows[i-1]+1 {
			return false
		}
	}
	return true
}

// Mask returns a view exposing only the given rows, in the given order.
// The masked view shares the source but has its own cache. Masking a
// masked view selects rows of that view.
func (v *View) Mask(rows []int) (*View, error) {
	mask := make([]int, len(rows))
	for i, r := range rows {
		if r < 0 || r >= v.Len() {
			return nil, fmt.Errorf("row %d of %d: %w", r, v.Len(), ErrMaskRange)
		}
		if v.mask != nil {
			r = v.mask[r]
		}
		mask[i] = r
	}

	masked := *v
	masked.mask = mask
	masked.cache = make(map[string]*units.Array)
	masked.warnings = v.Warnings()
	masked.owner = false
	return &masked, nil
}

// Namespace gives access to the fields of one category.
type Namespace struct {
	view     *View
	category registry.Category
}

// Category returns the namespace of c. It is valid even if c holds no
// fields.
func (v *View) Category(c registry.Category) Namespace {
	return Namespace{view: v, category: c}
}

// Names lists the snake-case names of the fields in the category.
func (n Namespace) Names() []string {
	var out []string
	for _, f := range n.view.fields {
		if f.Category == n.category {
			out = append(out, f.SnakeCase)
		}
	}
	return out
}

// Field returns the named field, reading it on first access.
func (n Namespace) Field(name string) (*units.Array, error) {
	f, err := n.view.lookup(string(n.category) + "." + name)
	if err != nil {
		return nil, err
	}
	return n.view.materialize(f)
}
