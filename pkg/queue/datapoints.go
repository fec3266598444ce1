package queue

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/cuemby/cdf-extractor-utils/pkg/identity"
	"github.com/cuemby/cdf-extractor-utils/pkg/model"
)

func msToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// DataPointFrame is one buffered record: a single series' identity plus
// the points to insert for it (spec §6's "(Identity, count, [DataPoint])").
type DataPointFrame struct {
	ID     identity.Identity
	Points []model.DataPoint
}

// DataPointCodec implements the exact little-endian wire format spec §6
// defines for the data-point overflow buffer:
//
//	u8 idKind (1=internal,2=external)
//	if internal: u64 id   else: u32 len + utf8 bytes
//	u32 count
//	count × (i64 tsMillis, u8 valueKind (1=num,2=str), f64 | (u32 len + utf8 bytes))
//
// Encode returns an error for an empty series.
type DataPointCodec struct{}

func (DataPointCodec) Encode(f DataPointFrame) ([]byte, error) {
	if len(f.Points) == 0 {
		return nil, fmt.Errorf("queue: refusing to encode empty data point series")
	}
	buf := new(bytes.Buffer)
	writeIdentity(buf, f.ID)
	binary.Write(buf, binary.LittleEndian, uint32(len(f.Points)))
	for _, dp := range f.Points {
		binary.Write(buf, binary.LittleEndian, dp.Timestamp.UnixMilli())
		if dp.IsString {
			buf.WriteByte(2)
			s := []byte(dp.StringValue)
			binary.Write(buf, binary.LittleEndian, uint32(len(s)))
			buf.Write(s)
		} else {
			buf.WriteByte(1)
			binary.Write(buf, binary.LittleEndian, dp.Value)
		}
	}
	return buf.Bytes(), nil
}

func (DataPointCodec) Decode(frame []byte) (DataPointFrame, error) {
	r := bytes.NewReader(frame)
	id, err := readIdentity(r)
	if err != nil {
		return DataPointFrame{}, err
	}

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return DataPointFrame{}, err
	}

	points := make([]model.DataPoint, 0, count)
	for i := uint32(0); i < count; i++ {
		var ms int64
		if err := binary.Read(r, binary.LittleEndian, &ms); err != nil {
			return DataPointFrame{}, err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return DataPointFrame{}, err
		}
		dp := model.DataPoint{Timestamp: msToTime(ms)}
		switch kind {
		case 2:
			dp.IsString = true
			var slen uint32
			if err := binary.Read(r, binary.LittleEndian, &slen); err != nil {
				return DataPointFrame{}, err
			}
			sbuf := make([]byte, slen)
			if _, err := io.ReadFull(r, sbuf); err != nil {
				return DataPointFrame{}, err
			}
			dp.StringValue = string(sbuf)
		default:
			if err := binary.Read(r, binary.LittleEndian, &dp.Value); err != nil {
				return DataPointFrame{}, err
			}
		}
		points = append(points, dp)
	}

	return DataPointFrame{ID: id, Points: points}, nil
}

func writeIdentity(buf *bytes.Buffer, id identity.Identity) {
	if id.Kind == identity.Internal {
		buf.WriteByte(1)
		binary.Write(buf, binary.LittleEndian, uint64(id.InternalID))
		return
	}
	buf.WriteByte(2)
	s := []byte(id.ExternalID)
	binary.Write(buf, binary.LittleEndian, uint32(len(s)))
	buf.Write(s)
}

func readIdentity(r *bytes.Reader) (identity.Identity, error) {
	kind, err := r.ReadByte()
	if err != nil {
		return identity.Identity{}, err
	}
	switch kind {
	case 1:
		var n uint64
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return identity.Identity{}, err
		}
		return identity.ByInternalID(int64(n)), nil
	case 2:
		var slen uint32
		if err := binary.Read(r, binary.LittleEndian, &slen); err != nil {
			return identity.Identity{}, err
		}
		sbuf := make([]byte, slen)
		if _, err := io.ReadFull(r, sbuf); err != nil {
			return identity.Identity{}, err
		}
		return identity.ByExternalID(string(sbuf)), nil
	default:
		return identity.Identity{}, fmt.Errorf("queue: unknown identity kind byte %d", kind)
	}
}
