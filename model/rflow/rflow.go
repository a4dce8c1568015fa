// Package rflow provides the "rflow" model: synthetic bidirectional network
// flow records with continuation updates, mimicking a flow-export sensor.
package rflow

import (
	"fmt"
	"math/rand"
	"os"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/admirito/avalon/errors"
	"github.com/admirito/avalon/extension"
	"github.com/admirito/avalon/model"
)

// maxPending caps the list of unterminated flows a sensor keeps open
const maxPending = 100

var sensorCounter atomic.Int64

var quotedString = regexp.MustCompile(`"(\S+)"`)

// Model emits flow records. Half of the time an open flow is continued:
// its counters grow and it may terminate; otherwise a new flow starts.
type Model struct {
	rng      *rand.Rand
	sensorID int64
	sessions int64
	flowID   int64
	pending  []extension.Record
	metadata []string
}

// New creates an rflow model instance. The metadata file, when given,
// supplies the pool of metadata keys attached to each flow; it is a shell
// list file from which every quoted word is taken.
func New(v extension.Values) (any, error) {
	m := &Model{
		rng:      model.NewRand(),
		sensorID: sensorCounter.Add(1),
	}
	m.sessions = 1 + m.rng.Int63n(0xf)

	if path := v.String("metadata_file", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Model", "New", "read rflow metadata file")
		}
		for _, match := range quotedString.FindAllStringSubmatch(string(data), -1) {
			m.metadata = append(m.metadata, match[1])
		}
	}
	return m, nil
}

// Next returns a new flow or the continuation of a pending one.
func (m *Model) Next() (extension.Record, error) {
	if len(m.pending) > 0 && m.rng.Intn(2) == 1 {
		return m.updatePending(m.rng.Intn(len(m.pending))), nil
	}
	return m.newFlow(), nil
}

// attachMetadata adds a random subset of the metadata keys to the record.
func (m *Model) attachMetadata(r extension.Record, value string) {
	if len(m.metadata) == 0 {
		return
	}
	count := m.rng.Intn(len(m.metadata) + 1)
	for _, i := range m.rng.Perm(len(m.metadata))[:count] {
		r[m.metadata[i]] = value
	}
}

func (m *Model) newFlow() extension.Record {
	_, srcIP := model.RandomIP(m.rng, 100)
	_, dstIP := model.RandomIP(m.rng, 100)

	firstByte := time.Now()
	lastByte := firstByte.Add(
		time.Duration(m.rng.Int63n(0xfff))*time.Second +
			time.Duration(m.rng.Int63n(0xfff))*time.Microsecond)

	packetsSend := m.rng.Int63n(1 << 48)
	packetsRecv := m.rng.Int63n(1 << 48)

	terminated := m.rng.Intn(4) != 3 || len(m.pending) >= maxPending

	flow := extension.Record{
		"flow_id":    m.flowID,
		"session_id": m.rng.Int63n(m.sessions),
		"src_ip":     srcIP,
		"src_port":   m.rng.Intn(1 << 16),
		"dst_ip":     dstIP,
		"dst_port":   m.rng.Intn(1 << 16),
		"l4_protocol": m.rng.Intn(143),
		"l7_protocol": m.rng.Intn(2989),
		"input_if_id":  m.rng.Int63n(1<<32+1) - 1,
		"output_if_id": m.rng.Int63n(1<<32+1) - 1,
		"first_byte_ts": firstByte,
		"last_byte_ts":  lastByte,
		"packet_no_send": packetsSend,
		"packet_no_recv": packetsRecv,
		"volume_send":    packetsSend * (1400 + m.rng.Int63n(151)),
		"volume_recv":    packetsRecv * (1400 + m.rng.Int63n(151)),
		"sensor_id":       m.sensorID,
		"flow_terminated": terminated,
		"protocol_data_send": m.rng.Intn(2),
		"protocol_data_recv": m.rng.Intn(2),
	}
	m.flowID++

	if !terminated {
		m.pending = append(m.pending, cloneRecord(flow))
	}

	m.attachMetadata(flow, fmt.Sprintf("flow %d metadata", flow["flow_id"]))
	return flow
}

// updatePending advances the counters of a pending flow and decides whether
// it terminates.
func (m *Model) updatePending(idx int) extension.Record {
	flow := m.pending[idx]

	last := flow["last_byte_ts"].(time.Time)
	flow["last_byte_ts"] = last.Add(
		time.Duration(m.rng.Int63n(0xfff))*time.Second +
			time.Duration(m.rng.Int63n(0xfff))*time.Microsecond)

	newSend := m.rng.Int63n(1 << 24)
	newRecv := m.rng.Int63n(1 << 24)
	flow["packet_no_send"] = flow["packet_no_send"].(int64) + newSend
	flow["packet_no_recv"] = flow["packet_no_recv"].(int64) + newRecv
	flow["volume_send"] = flow["volume_send"].(int64) + newSend*(1400+m.rng.Int63n(151))
	flow["volume_recv"] = flow["volume_recv"].(int64) + newRecv*(1400+m.rng.Int63n(151))

	terminated := m.rng.Intn(4) == 3
	out := flow
	if terminated {
		flow["flow_terminated"] = true
		m.pending = append(m.pending[:idx], m.pending[idx+1:]...)
	} else {
		// keep the pending entry untouched by metadata on the emitted copy
		out = cloneRecord(flow)
	}

	m.attachMetadata(out, "flow continuation metadata")
	return out
}

func cloneRecord(r extension.Record) extension.Record {
	out := make(extension.Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Register adds the rflow model and its arguments to the registry.
func Register(reg *extension.Registry) error {
	return reg.Register(extension.Descriptor{
		Family:      extension.FamilyModel,
		Title:       "rflow",
		Description: "synthetic bidirectional network flows with continuation updates",
		AddArguments: func(g *extension.Group) {
			g.String("rflow-metadata-file", "",
				"File with quoted metadata keys to attach to rflow records")
		},
		New: New,
	})
}
