package message

// FillValue is the value of unwritten dataset elements.
type FillValue struct {
	Version        uint8
	SpaceAllocTime uint8
	FillWriteTime  uint8
	IsDefined      bool
	Value          []byte
}

func (m *FillValue) Type() Type { return TypeFillValue }

func decodeFillValue(d *decoder) *FillValue {
	fv := &FillValue{Version: d.u8()}
	switch fv.Version {
	case 1, 2:
		fv.SpaceAllocTime = d.u8()
		fv.FillWriteTime = d.u8()
		fv.IsDefined = d.u8() != 0
		if fv.IsDefined && d.remaining() >= 4 {
			fv.Value = d.copyBytes(int(d.u32()))
		}
	case 3:
		flags := d.u8()
		fv.SpaceAllocTime = flags & 0x03
		fv.FillWriteTime = flags>>2&0x03
		fv.IsDefined = flags&0x10 == 0
		if fv.IsDefined && flags&0x20 != 0 {
			fv.Value = d.copyBytes(int(d.u32()))
		}
	default:
		d.fail("unsupported fill value version %d", fv.Version)
	}
	return fv
}
