package appmanager

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"AgriDataHub/api"
	"AgriDataHub/api/records"
	"AgriDataHub/internal/analytics"
	"AgriDataHub/internal/audit"
	"AgriDataHub/internal/config"
	"AgriDataHub/internal/ingest"
	"AgriDataHub/internal/logger"
	recordsvc "AgriDataHub/internal/records"
	"AgriDataHub/internal/schema"
	"AgriDataHub/internal/serviceiface"
	"AgriDataHub/internal/store"
)

var (
	rowStore  store.RowStore
	catalogue *schema.Catalogue
	settings  = &config.Config{}
)

func SetStore(st store.RowStore) {
	rowStore = st
}

func SetCatalogue(cat *schema.Catalogue) {
	catalogue = cat
}

func SetConfig(cfg *config.Config) {
	settings = cfg
}

// GetStore returns the row store shared by every service
func GetStore() store.RowStore {
	return rowStore
}

// NewHandler wires the ingestion, analytics and record services over the
// configured store into the API router.
func NewHandler() (http.Handler, error) {
	if rowStore == nil || catalogue == nil {
		return nil, errors.New("appmanager: store and catalogue must be set before building the API")
	}
	rec := audit.NewStoreRecorder(rowStore)
	imp := ingest.NewImporter(rowStore, catalogue, rec, ingest.WithLenientHeader(settings.HeaderLenient))
	return records.NewRouter(&records.Handlers{
		Catalogue:   catalogue,
		Importer:    imp,
		Engine:      analytics.NewEngine(rowStore),
		Records:     recordsvc.NewService(rowStore, catalogue, rec, imp),
		History:     rec,
		UploadLimit: settings.UploadLimit(),
	}), nil
}

var serviceConstructors = map[string]func(map[string]interface{}) (serviceiface.Service, error){
	"logger": func(cfg map[string]interface{}) (serviceiface.Service, error) {
		return logger.NewLoggerService(cfg), nil
	},
	"gateway": func(cfg map[string]interface{}) (serviceiface.Service, error) {
		h, err := NewHandler()
		if err != nil {
			return nil, err
		}
		if cfg == nil {
			cfg = map[string]interface{}{}
		}
		if _, ok := cfg["addr"]; !ok && settings.HTTPAddr != "" {
			cfg["addr"] = settings.HTTPAddr
		}
		return api.NewGatewayService(cfg, h), nil
	},
}

// ------------------- MANAGER -------------------

type AppManager struct {
	services []serviceiface.Service
	mu       sync.Mutex
}

func NewAppManager() *AppManager {
	return &AppManager{
		services: make([]serviceiface.Service, 0),
	}
}

func (am *AppManager) RegisterService(s serviceiface.Service) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.services = append(am.services, s)
}

// StartAll starts services in registration order.
func (am *AppManager) StartAll() error {
	am.mu.Lock()
	defer am.mu.Unlock()
	for _, service := range am.services {
		fmt.Println("Starting service:", service.Name())
		if err := service.Start(); err != nil {
			return fmt.Errorf("failed to start service %s: %w", service.Name(), err)
		}
	}
	return nil
}

// StopAll stops services in reverse registration order.
func (am *AppManager) StopAll() error {
	am.mu.Lock()
	defer am.mu.Unlock()
	for i := len(am.services) - 1; i >= 0; i-- {
		svc := am.services[i]
		if err := svc.Stop(); err != nil {
			return fmt.Errorf("failed to stop service %s: %w", svc.Name(), err)
		}
	}
	return nil
}

// ------------------- YAML CONFIG -------------------

type ServiceSequencer struct {
	Services []ServiceConfig `yaml:"services"`
}

type ServiceConfig struct {
	Name       string                 `yaml:"name"`
	StartOrder int                    `yaml:"start_order"`
	Config     map[string]interface{} `yaml:"config"`
}

func LoadServiceSequence(path string) ([]ServiceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var seq ServiceSequencer
	if err := yaml.Unmarshal(data, &seq); err != nil {
		return nil, err
	}

	// sort by start_order
	sort.SliceStable(seq.Services, func(i, j int) bool {
		return seq.Services[i].StartOrder < seq.Services[j].StartOrder
	})

	return seq.Services, nil
}

// AutoRegisterServices builds every known service in configs and makes the
// logger service the global logger. Unknown names are skipped.
func (am *AppManager) AutoRegisterServices(configs []ServiceConfig) error {
	for _, svc := range configs {
		constructor, ok := serviceConstructors[svc.Name]
		if !ok {
			fmt.Println("Skipping unknown service:", svc.Name)
			continue
		}
		service, err := constructor(svc.Config)
		if err != nil {
			return fmt.Errorf("failed to build service %s: %w", svc.Name, err)
		}
		am.RegisterService(service)
	}

	for _, svc := range am.services {
		if l, ok := svc.(*logger.LoggerService); ok {
			logger.SetGlobalLogger(l)
			break
		}
	}
	return nil
}

func (am *AppManager) GetServiceByName(name string) serviceiface.Service {
	for _, svc := range am.services {
		if svc.Name() == name {
			return svc
		}
	}
	return nil
}
