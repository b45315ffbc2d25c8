package appmanager

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AgriDataHub/internal/audit"
	"AgriDataHub/internal/config"
	"AgriDataHub/internal/logger"
	"AgriDataHub/internal/schema"
	"AgriDataHub/internal/store/memstore"
)

func TestLoadServiceSequenceSortsByStartOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "services.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
services:
  - name: gateway
    start_order: 2
    config:
      port: 9090
  - name: logger
    start_order: 1
`), 0o600))

	seq, err := LoadServiceSequence(path)
	require.NoError(t, err)
	require.Len(t, seq, 2)
	assert.Equal(t, "logger", seq[0].Name)
	assert.Equal(t, 9090, seq[1].Config["port"])
}

func TestShippedServiceSequence(t *testing.T) {
	seq, err := LoadServiceSequence("../../services.yaml")
	require.NoError(t, err)
	names := []string{}
	for _, s := range seq {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"logger", "gateway"}, names)
}

func TestAutoRegisterServices(t *testing.T) {
	cat, err := schema.LoadCatalogue("../../modules.yaml")
	require.NoError(t, err)
	tables := cat.Tables()
	tables[audit.Table] = audit.Columns
	SetStore(memstore.New(tables))
	SetCatalogue(cat)
	SetConfig(&config.Config{HTTPAddr: ":18081", UploadMaxMB: 5})
	t.Cleanup(func() { logger.SetGlobalLogger(nil) })

	am := NewAppManager()
	require.NoError(t, am.AutoRegisterServices([]ServiceConfig{
		{Name: "logger", Config: map[string]interface{}{"folder_path": t.TempDir()}},
		{Name: "heartbeat"},
		{Name: "gateway"},
	}))
	require.NotNil(t, am.GetServiceByName("gateway"))
	assert.Nil(t, am.GetServiceByName("heartbeat"))
	assert.Same(t, am.GetServiceByName("logger"), logger.GlobalLogger)
}

func TestGatewayNeedsStoreAndCatalogue(t *testing.T) {
	SetStore(nil)
	SetCatalogue(nil)
	err := NewAppManager().AutoRegisterServices([]ServiceConfig{{Name: "gateway"}})
	assert.Error(t, err)
}

type stubService struct {
	name   string
	log    *[]string
	failOn string
}

func (s *stubService) Name() string { return s.name }

func (s *stubService) Start() error {
	if s.failOn == "start" {
		return errors.New("bind: address already in use")
	}
	*s.log = append(*s.log, "start "+s.name)
	return nil
}

func (s *stubService) Stop() error {
	*s.log = append(*s.log, "stop "+s.name)
	return nil
}

func TestStartAndStopOrder(t *testing.T) {
	var calls []string
	am := NewAppManager()
	am.RegisterService(&stubService{name: "logger", log: &calls})
	am.RegisterService(&stubService{name: "gateway", log: &calls})

	require.NoError(t, am.StartAll())
	require.NoError(t, am.StopAll())
	assert.Equal(t, []string{"start logger", "start gateway", "stop gateway", "stop logger"}, calls)

	broken := NewAppManager()
	broken.RegisterService(&stubService{name: "gateway", log: &calls, failOn: "start"})
	assert.ErrorContains(t, broken.StartAll(), "gateway")
}
