package catalogue

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/robert-malhotra/go-velociraptor/hdf5"
	"github.com/robert-malhotra/go-velociraptor/internal/logging"
	"github.com/robert-malhotra/go-velociraptor/units"
)

// Header attribute names written by VELOCIraptor.
const (
	attrLengthUnit      = "Length_unit_to_kpc"
	attrMassUnit        = "Mass_unit_to_solarmass"
	attrVelocityUnit    = "Velocity_to_kms"
	attrMetallicityUnit = "Metallicity_unit_to_solar"
	attrAgeUnit         = "Stellar_age_unit_to_yr"
	attrSFRUnit         = "SFR_unit_to_solarmassperyear"
	attrScaleFactor     = "Time"
	attrHubble          = "h_val"
	attrCosmological    = "Cosmological_Sim"
	attrComoving        = "Comoving_or_Physical"
	attrPeriod          = "Period"

	attrFieldUnits = "Units"
	attrHExponent  = "h-scale exponent"
	attrAExponent  = "a-scale exponent"
)

// Datasets that describe the file rather than the haloes.
var headerDatasets = map[string]bool{
	"Num_of_files":        true,
	"File_id":             true,
	"Num_of_groups":       true,
	"Total_num_of_groups": true,
}

// Header attributes live on the root group in older outputs and in these
// groups in newer ones.
var headerGroups = []string{"/", "/SimulationInfo", "/UnitInfo"}

var multiFilePattern = regexp.MustCompile(`^(\S+properties)\.\d+$`)

// HDF5Source reads a VELOCIraptor properties file, or all files of a
// multi-file output, through the hdf5 package.
type HDF5Source struct {
	files    []*hdf5.File
	datasets []map[string]*hdf5.Dataset
	meta     Metadata
	fields   []FieldInfo
	index    map[string]int
	logger   *slog.Logger
}

// OpenHDF5 opens a properties file. When the file declares Num_of_files
// greater than one, its siblings <stem>.0 .. <stem>.N-1 are opened too
// and every field is the concatenation of the files in order.
func OpenHDF5(path string, logger *slog.Logger) (*HDF5Source, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	first, err := hdf5.Open(path)
	if err != nil {
		return nil, err
	}

	paths, err := siblingPaths(first, path)
	if err != nil {
		first.Close()
		return nil, err
	}

	s := &HDF5Source{logger: logger, index: make(map[string]int)}
	if len(paths) == 1 {
		s.files = []*hdf5.File{first}
	} else {
		first.Close()
		logger.Debug("opening multi-file catalogue", "path", path, "files", len(paths))
		for _, p := range paths {
			f, err := hdf5.Open(p)
			if err != nil {
				s.Close()
				return nil, fmt.Errorf("%w: %v", ErrMultiFile, err)
			}
			s.files = append(s.files, f)
		}
	}

	if err := s.load(paths); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func siblingPaths(f *hdf5.File, path string) ([]string, error) {
	n := int64(1)
	if ds, err := f.OpenDataset("Num_of_files"); err == nil {
		vals, err := ds.ReadInt64()
		if err != nil {
			return nil, fmt.Errorf("reading Num_of_files: %w", err)
		}
		if len(vals) > 0 {
			n = vals[0]
		}
	}
	if n <= 1 {
		return []string{path}, nil
	}

	m := multiFilePattern.FindStringSubmatch(path)
	if m == nil {
		return nil, fmt.Errorf("%w: %s declares %d files but is not named <stem>properties.N", ErrMultiFile, path, n)
	}
	paths := make([]string, n)
	for i := range paths {
		paths[i] = fmt.Sprintf("%s.%d", m[1], i)
	}
	return paths, nil
}

func (s *HDF5Source) load(paths []string) error {
	meta, err := readMetadata(s.files[0])
	if err != nil {
		return fmt.Errorf("%s: %w", paths[0], err)
	}
	meta.Files = paths

	s.datasets = make([]map[string]*hdf5.Dataset, len(s.files))
	for i, f := range s.files {
		s.datasets[i], err = fieldDatasets(f)
		if err != nil {
			return fmt.Errorf("%s: %w", paths[i], err)
		}
		if groups, ok := firstInt(f, "Num_of_groups"); ok {
			meta.NumGroups += groups
		}
	}
	s.meta = meta

	// The first file fixes the field list and order.
	members, err := s.files[0].Root().Members()
	if err != nil {
		return err
	}
	for _, name := range members {
		ds, ok := s.datasets[0][name]
		if !ok {
			continue
		}
		info := s.fieldInfo(ds)
		for i := 1; i < len(s.datasets); i++ {
			if other, ok := s.datasets[i][name]; ok {
				info.Len += int(other.Len())
			}
		}
		s.index[name] = len(s.fields)
		s.fields = append(s.fields, info)
	}
	return nil
}

// fieldDatasets returns the one-dimensional numeric datasets of the root
// group, excluding header datasets.
func fieldDatasets(f *hdf5.File) (map[string]*hdf5.Dataset, error) {
	members, err := f.Root().Members()
	if err != nil {
		return nil, err
	}
	out := make(map[string]*hdf5.Dataset, len(members))
	for _, name := range members {
		if headerDatasets[name] {
			continue
		}
		obj, err := f.Root().Open(name)
		if err != nil {
			return nil, err
		}
		ds, ok := obj.(*hdf5.Dataset)
		if !ok || !ds.IsNumeric() || ds.Rank() != 1 {
			continue
		}
		out[name] = ds
	}
	return out, nil
}

func (s *HDF5Source) fieldInfo(ds *hdf5.Dataset) FieldInfo {
	info := FieldInfo{Name: ds.Name(), Len: int(ds.Len())}
	if a := ds.Attr(attrFieldUnits); a != nil {
		if v, err := a.ReadScalarString(); err == nil {
			info.Units = v
		}
	}
	info.HExp = s.exponent(ds, attrHExponent)
	info.AExp = s.exponent(ds, attrAExponent)
	return info
}

func (s *HDF5Source) exponent(ds *hdf5.Dataset, name string) *units.Rational {
	a := ds.Attr(name)
	if a == nil {
		return nil
	}
	v, err := a.ReadScalarFloat64()
	if err != nil {
		s.logger.Warn("unreadable exponent attribute", "field", ds.Name(), "attr", name, "err", err)
		return nil
	}
	r, ok := units.RationalFromFloat(v)
	if !ok {
		s.logger.Warn("exponent is not a simple fraction", "field", ds.Name(), "attr", name, "value", v)
		return nil
	}
	return &r
}

func readMetadata(f *hdf5.File) (Metadata, error) {
	factor := func(name string) *float64 {
		if v, ok := headerFloat(f, name); ok {
			return &v
		}
		return nil
	}
	sys := units.SystemFromHeader(units.HeaderFactors{
		LengthToKpc:      factor(attrLengthUnit),
		MassToMsun:       factor(attrMassUnit),
		VelocityToKms:    factor(attrVelocityUnit),
		MetallicityToSun: factor(attrMetallicityUnit),
		AgeToYr:          factor(attrAgeUnit),
		SFRToMsunPerYr:   factor(attrSFRUnit),
	})

	cosmo := units.Cosmology{
		H:            headerFloatOr(f, attrHubble, 1),
		A:            headerFloatOr(f, attrScaleFactor, 1),
		OmegaM:       headerFloatOr(f, "Omega_m", 0),
		OmegaB:       headerFloatOr(f, "Omega_b", 0),
		OmegaLambda:  headerFloatOr(f, "Omega_Lambda", 0),
		W0:           headerFloatOr(f, "w_of_DE", -1),
		Cosmological: headerFloatOr(f, attrCosmological, 0) != 0,
		Comoving:     headerFloatOr(f, attrComoving, 0) != 0,
	}
	if !cosmo.Cosmological {
		// Time is the simulation time, not a scale factor.
		cosmo.A = 1
	}
	if period, ok := headerFloat(f, attrPeriod); ok {
		if length, ok := sys.Unit(units.KeyLength); ok {
			cosmo.BoxSize = &units.Quantity{Value: period, Unit: length}
		}
	}
	if err := cosmo.Validate(); err != nil {
		return Metadata{}, err
	}

	meta := Metadata{Cosmology: cosmo, Units: sys}
	if total, ok := firstInt(f, "Total_num_of_groups"); ok {
		meta.TotalNumGroups = total
	}
	return meta, nil
}

func headerFloat(f *hdf5.File, name string) (float64, bool) {
	for _, group := range headerGroups {
		attr, err := f.GetAttr(hdf5.JoinAttrPath(group, name))
		if err != nil {
			continue
		}
		v, err := attr.ReadScalarFloat64()
		if err == nil {
			return v, true
		}
	}
	return 0, false
}

func headerFloatOr(f *hdf5.File, name string, fallback float64) float64 {
	if v, ok := headerFloat(f, name); ok {
		return v
	}
	return fallback
}

func firstInt(f *hdf5.File, name string) (int64, bool) {
	ds, err := f.OpenDataset(name)
	if err != nil {
		return 0, false
	}
	vals, err := ds.ReadInt64()
	if err != nil || len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

// Metadata implements Source.
func (s *HDF5Source) Metadata() Metadata { return s.meta }

// Fields implements Source.
func (s *HDF5Source) Fields() []FieldInfo {
	out := make([]FieldInfo, len(s.fields))
	copy(out, s.fields)
	return out
}

// ReadField implements Source.
func (s *HDF5Source) ReadField(name string) ([]float64, error) {
	i, ok := s.index[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrFieldNotFound)
	}
	out := make([]float64, 0, s.fields[i].Len)
	for fi := range s.files {
		ds, err := s.dataset(fi, name)
		if err != nil {
			return nil, err
		}
		vals, err := ds.ReadFloat64()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		out = append(out, vals...)
	}
	return out, nil
}

// ReadFieldInt64 implements IntegerSource. Floating-point fields are
// rejected rather than truncated.
func (s *HDF5Source) ReadFieldInt64(name string) ([]int64, error) {
	i, ok := s.index[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrFieldNotFound)
	}
	out := make([]int64, 0, s.fields[i].Len)
	for fi := range s.files {
		ds, err := s.dataset(fi, name)
		if err != nil {
			return nil, err
		}
		if dt := ds.Dtype(); !strings.HasPrefix(dt, "int") && !strings.HasPrefix(dt, "uint") {
			return nil, fmt.Errorf("%s is %s: %w", name, dt, ErrNotInteger)
		}
		vals, err := ds.ReadInt64()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		out = append(out, vals...)
	}
	return out, nil
}

// ReadFieldRange implements Source. Only the files and rows covering the
// range are read.
func (s *HDF5Source) ReadFieldRange(name string, start, count int) ([]float64, error) {
	i, ok := s.index[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrFieldNotFound)
	}
	if start < 0 || count < 0 || start+count > s.fields[i].Len {
		return nil, fmt.Errorf("rows [%d, %d) of %s with %d rows: %w",
			start, start+count, name, s.fields[i].Len, ErrMaskRange)
	}

	out := make([]float64, 0, count)
	offset := 0
	for fi := range s.files {
		if len(out) == count {
			break
		}
		ds, err := s.dataset(fi, name)
		if err != nil {
			return nil, err
		}
		n := int(ds.Len())
		lo := max(start, offset)
		hi := min(start+count, offset+n)
		if lo < hi {
			vals, err := ds.ReadFloat64Range(uint64(lo-offset), uint64(hi-lo))
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", name, err)
			}
			out = append(out, vals...)
		}
		offset += n
	}
	return out, nil
}

func (s *HDF5Source) dataset(file int, name string) (*hdf5.Dataset, error) {
	ds, ok := s.datasets[file][name]
	if !ok {
		return nil, fmt.Errorf("%s in %s: %w", name, s.files[file].Path(), ErrFieldNotFound)
	}
	return ds, nil
}

// Close closes every open file.
func (s *HDF5Source) Close() error {
	var errs []error
	for _, f := range s.files {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
