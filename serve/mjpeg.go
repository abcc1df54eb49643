package serve

import (
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultPreviewFPS is the preview frame rate when none is configured.
const DefaultPreviewFPS = 5

const boundaryWord = "MJPEGBOUNDARY"
const headerf = "\r\n" +
	"--" + boundaryWord + "\r\n" +
	"Content-Type: image/jpeg\r\n" +
	"Content-Length: %d\r\n" +
	"X-Timestamp: %.6f\r\n" +
	"\r\n"

// Preview serves the newest camera frame as a multipart JPEG stream.
type Preview struct {
	// Snapshot returns the newest frame encoded as JPEG.
	Snapshot func() ([]byte, error)
	FPS      int
}

// ServeHTTP implements http.Handler interface, serving MJPEG.
func (p *Preview) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fps := p.FPS
	if fps <= 0 {
		fps = DefaultPreviewFPS
	}
	clog := log.WithField("addr", r.RemoteAddr)
	clog.Infof("MJPEG preview connected")
	defer clog.Infof("MJPEG preview disconnected")

	w.Header().Add("Content-Type", "multipart/x-mixed-replace;boundary="+boundaryWord)
	flusher, _ := w.(http.Flusher)

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()
	for {
		jpeg, err := p.Snapshot()
		if err != nil {
			clog.Warnf("Preview snapshot failed: %v", err)
			return
		}
		header := fmt.Sprintf(headerf, len(jpeg), float64(time.Now().UnixNano())/1e9)
		if _, err := w.Write([]byte(header)); err != nil {
			return
		}
		if _, err := w.Write(jpeg); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
