package rflow

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admirito/avalon/extension"
)

func newModel(t *testing.T, v extension.Values) *Model {
	t.Helper()
	inst, err := New(v)
	require.NoError(t, err)
	return inst.(*Model)
}

func TestModel_NextFields(t *testing.T) {
	m := newModel(t, nil)

	record, err := m.Next()
	require.NoError(t, err)

	for _, key := range []string{
		"flow_id", "session_id", "src_ip", "src_port", "dst_ip", "dst_port",
		"l4_protocol", "l7_protocol", "first_byte_ts", "last_byte_ts",
		"packet_no_send", "packet_no_recv", "volume_send", "volume_recv",
		"sensor_id", "flow_terminated",
	} {
		assert.Contains(t, record, key)
	}

	first := record["first_byte_ts"].(time.Time)
	last := record["last_byte_ts"].(time.Time)
	assert.False(t, last.Before(first))
}

func TestModel_FlowIDsStayAllocated(t *testing.T) {
	m := newModel(t, nil)

	for i := 0; i < 50; i++ {
		record, err := m.Next()
		require.NoError(t, err)
		// Continuations may repeat an id, but no record can carry an id the
		// model never allocated.
		assert.Less(t, record["flow_id"].(int64), m.flowID)
	}
}

func TestModel_PendingBounded(t *testing.T) {
	m := newModel(t, nil)

	for i := 0; i < 2000; i++ {
		_, err := m.Next()
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, len(m.pending), maxPending)
}

func TestModel_MetadataFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata-list.sh")
	require.NoError(t, os.WriteFile(path,
		[]byte(`LIST=("community_id" "vlan_tag" "app_name")`), 0o644))

	m := newModel(t, extension.Values{"metadata_file": path})
	assert.Equal(t, []string{"community_id", "vlan_tag", "app_name"}, m.metadata)
}

func TestModel_MetadataFileMissing(t *testing.T) {
	_, err := New(extension.Values{"metadata_file": "/nonexistent/metadata.sh"})
	require.Error(t, err)
}

func TestRegister(t *testing.T) {
	reg := extension.NewRegistry()
	require.NoError(t, Register(reg))
	assert.True(t, reg.Has(extension.FamilyModel, "rflow"))
}
