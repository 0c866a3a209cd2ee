// Package gateway exposes the latest detection and an on-demand detect
// endpoint over HTTP, plus a websocket feed of per-frame reports.
package gateway

import (
	"ColorDetServer/engine"
	iface "ColorDetServer/interface"
	"ColorDetServer/logger"
	"ColorDetServer/monitor"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fxamacker/cbor/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// MaxUploadSide bounds the longer side of images posted to /api/detect.
const MaxUploadSide = 1920

var (
	ErrEmptyImage = errors.New("decoded image is empty or unsupported format")

	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	writeWait = 2 * time.Second
)

type DetectRequest struct {
	Image string `json:"image" binding:"required"`
	Label string `json:"label"`
}

type DetectResponse struct {
	Detection *iface.Detection `json:"detection"`
	Annotated string           `json:"annotated"`
}

type Server struct {
	store    *Store
	detector *engine.Detector
	router   *gin.Engine
	log      *zap.Logger
}

func New(store *Store, detector *engine.Detector) *Server {
	s := &Server{
		store:    store,
		detector: detector,
		log:      logger.Named("gateway"),
	}
	s.router = s.routes()
	return s
}

func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves the router on port in the background. Stop it with Shutdown.
func (s *Server) Start(port int) *http.Server {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server ListenAndServe error", zap.Error(err))
		}
	}()
	s.log.Info("HTTP gateway listening", zap.Int("port", port))
	return srv
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), countRequests())

	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/api/detection/latest", func(c *gin.Context) {
		report, ok := s.store.Latest()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "No frame processed yet"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": report})
	})
	r.GET("/api/config", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": s.detector.CheckConfig()})
	})
	r.POST("/api/detect", s.handleDetect)
	r.GET("/ws/detections", s.handleFeed)
	return r
}

func countRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		monitor.APIRequestsTotal.WithLabelValues(route).Inc()
	}
}

func (s *Server) handleDetect(c *gin.Context) {
	var req DetectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mat, err := Base64ToMat(req.Image)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image: " + err.Error()})
		return
	}
	defer mat.Close()

	det := s.detector
	if req.Label != "" {
		det = det.WithLabel(req.Label)
	}
	res, err := det.Detect(mat)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer res.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, res.Display)
	if err != nil {
		s.log.Error("encode annotated frame", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode result"})
		return
	}
	defer buf.Close()

	c.JSON(http.StatusOK, gin.H{"data": DetectResponse{
		Detection: res.Detection,
		Annotated: base64.StdEncoding.EncodeToString(buf.GetBytes()),
	}})
}

// handleFeed streams every published report. ?format=cbor switches from JSON
// text frames to CBOR binary frames.
func (s *Server) handleFeed(c *gin.Context) {
	useCBOR := c.Query("format") == "cbor"
	// 升级前订阅，保证握手完成后不会漏掉报告
	id, reports := s.store.Subscribe()
	defer s.store.Unsubscribe(id)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// 升级失败，不要再写 JSON
		return
	}
	defer conn.Close()
	s.log.Debug("feed subscriber connected", zap.String("id", id), zap.Bool("cbor", useCBOR))

	// 只用来感知客户端断开
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			s.log.Debug("feed subscriber left", zap.String("id", id))
			return
		case report, ok := <-reports:
			if !ok {
				return
			}
			if err := writeReport(conn, report, useCBOR); err != nil {
				s.log.Debug("feed write failed", zap.String("id", id), zap.Error(err))
				return
			}
		}
	}
}

func writeReport(conn *websocket.Conn, report iface.Report, useCBOR bool) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if !useCBOR {
		return conn.WriteJSON(report)
	}
	payload, err := cbor.Marshal(report)
	if err != nil {
		return fmt.Errorf("cbor encode report: %w", err)
	}
	return conn.WriteMessage(websocket.BinaryMessage, payload)
}

// Base64ToMat 将 base64 字符串（可带 data:image/... 前缀）转为 BGR gocv.Mat，
// 按 EXIF 方向摆正，过大的图片缩到 MaxUploadSide 以内
func Base64ToMat(b64 string) (gocv.Mat, error) {
	// 去掉可能的 data URL 前缀
	if i := strings.Index(b64, ","); i != -1 && strings.HasPrefix(b64, "data:") {
		b64 = b64[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return gocv.NewMat(), err
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return gocv.NewMat(), err
	}
	img = fitUpload(img)
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), err
	}
	if mat.Empty() {
		_ = mat.Close()
		return gocv.NewMat(), ErrEmptyImage
	}
	return mat, nil
}

func fitUpload(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() <= MaxUploadSide && b.Dy() <= MaxUploadSide {
		return img
	}
	return imaging.Fit(img, MaxUploadSide, MaxUploadSide, imaging.Lanczos)
}
