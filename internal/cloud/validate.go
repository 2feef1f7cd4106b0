package cloud

import (
	"github.com/rs/zerolog"

	"github.com/fedesuarez16/opting-sub000/internal/models"
)

// FilterValid returns the entries that satisfy the folder/file invariant and the
// number dropped. Each dropped entry is logged at warn level.
func FilterValid(entries []models.RemoteFolderEntry, logger *zerolog.Logger) ([]models.RemoteFolderEntry, int) {
	valid := make([]models.RemoteFolderEntry, 0, len(entries))
	dropped := 0
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			dropped++
			if logger != nil {
				logger.Warn().Err(err).Str("entry_id", e.ID).Str("name", e.Name).Msg("dropping malformed drive entry")
			}
			continue
		}
		valid = append(valid, e)
	}
	return valid, dropped
}
