package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/username/ssnreport/backend/src/logger"
)

// SpeciesInfo is one entry of the regulator's species reference catalog.
type SpeciesInfo struct {
	Codigo      string `json:"codigo"`
	TipoEspecie string `json:"tipo_especie"`
	Descripcion string `json:"descripcion"`
}

var (
	speciesMap map[string]SpeciesInfo
	loadOnce   sync.Once
	loadError  error
	dataLoaded bool
)

// InitSpeciesData loads the species catalog from the given file path.
// This should be called once from main.go after config is loaded.
func InitSpeciesData(filePath string) error {
	logger.L.Info("Initializing species catalog", "path", filePath)
	loadOnce.Do(func() {
		fileData, err := os.ReadFile(filePath)
		if err != nil {
			loadError = fmt.Errorf("failed to read species catalog file '%s': %w", filePath, err)
			logger.L.Error("Failed to read species catalog file", "path", filePath, "error", err)
			return
		}

		var species []SpeciesInfo
		err = json.Unmarshal(fileData, &species)
		if err != nil {
			loadError = fmt.Errorf("failed to unmarshal species catalog from '%s': %w", filePath, err)
			logger.L.Error("Failed to unmarshal species catalog", "path", filePath, "error", err)
			return
		}

		speciesMap = make(map[string]SpeciesInfo)
		for _, s := range species {
			speciesMap[strings.ToUpper(s.Codigo)] = s
		}
		dataLoaded = true
		logger.L.Info("Species catalog loaded", "entries", len(speciesMap))
	})
	return loadError
}

// LookupSpecies returns the catalog entry for a species code. The second
// return value is false both on a miss and when the catalog never loaded; a
// miss is a soft condition and callers must not reject rows because of it.
func LookupSpecies(codigo string) (SpeciesInfo, bool) {
	if !dataLoaded {
		return SpeciesInfo{}, false
	}
	info, ok := speciesMap[strings.ToUpper(strings.TrimSpace(codigo))]
	return info, ok
}

// Loaded reports whether the catalog is available at all.
func Loaded() bool {
	return dataLoaded
}

// SetForTesting replaces the catalog content. Test helper.
func SetForTesting(entries []SpeciesInfo) {
	speciesMap = make(map[string]SpeciesInfo)
	for _, s := range entries {
		speciesMap[strings.ToUpper(s.Codigo)] = s
	}
	dataLoaded = true
}
