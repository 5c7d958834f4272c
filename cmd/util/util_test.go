package util

import (
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/ValentinKolb/sKV/rpc/serializer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 40)
	for _, line := range strings.Split(WrapString(text), "\n") {
		assert.LessOrEqual(t, len(line), Wrap)
	}
	assert.Equal(t, "short text", WrapString("  short   text "))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b,"))
	assert.Nil(t, splitList(""))
}

func TestGetResolver(t *testing.T) {
	s := serializer.NewBinarySerializer()

	// rpc without endpoints uses the data transport of the client
	r, err := GetResolver(&common.ClientConfig{Meta: common.ClientMetaConfig{Type: common.MetaTypeRPC}}, s)
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = GetResolver(&common.ClientConfig{Meta: common.ClientMetaConfig{
		Type:                 common.MetaTypeStatic,
		StaticPartitionCount: 6,
		StaticAppID:          2,
	}}, s)
	require.NoError(t, err)

	done := make(chan int32, 1)
	r.QueryPartitionCount("temp", time.Second, func(partitionCount, _ int32, err error) {
		assert.NoError(t, err)
		done <- partitionCount
	})
	assert.Equal(t, int32(6), <-done)

	_, err = GetResolver(&common.ClientConfig{Meta: common.ClientMetaConfig{Type: common.MetaTypeZK}}, s)
	assert.Error(t, err)

	_, err = GetResolver(&common.ClientConfig{Meta: common.ClientMetaConfig{Type: "etcd"}}, s)
	assert.Error(t, err)
}
