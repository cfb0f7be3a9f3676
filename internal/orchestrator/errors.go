package orchestrator

import (
	"github.com/rotisserie/eris"

	"github.com/booth-beacon/beacon-crawler/internal/model"
)

func errNoParser(src model.Source) error {
	return eris.Errorf("orchestrator: no adapter registered for %s and no fallback extractor configured", src.URL)
}
