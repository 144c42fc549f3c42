package session

import "fmt"

// MapStatus is the state of a session's routes map.
type MapStatus string

const (
	MapNone    MapStatus = "none"
	MapPending MapStatus = "pending"
	MapReady   MapStatus = "ready"
	MapFailed  MapStatus = "failed"
)

type mapArtifact struct {
	status MapStatus
	pdf    []byte
}

// Map returns the routes map status and, once ready, the PDF. The map
// outlives the session's interactive lifetime.
func (s *Session) Map() (MapStatus, []byte) {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	return s.mapArt.status, s.mapArt.pdf
}

// MapFilename is the download name of the routes map.
func (s *Session) MapFilename() string {
	return fmt.Sprintf("routes_%s.pdf", FileSuffix(s.result.Request))
}

func (s *Session) setMapPending() {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	s.mapArt = mapArtifact{status: MapPending}
}

func (s *Session) setMap(pdf []byte, err error) {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	if err != nil {
		s.mapArt = mapArtifact{status: MapFailed}
		return
	}
	s.mapArt = mapArtifact{status: MapReady, pdf: pdf}
}
