package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richd0tcom/sensorgate/internal/domain"
	"github.com/richd0tcom/sensorgate/internal/geo"
)

const (
	msgInvalidBatch = "Request body must be a non-empty JSON array."
	msgBatchFailed  = "Failed to process batch due to an internal error."
	msgListFailed   = "Failed to list sensors."

	defaultNearbyRadiusKm = 1.0
)

var errInvalidBatch = errors.New(msgInvalidBatch)

// parseBatch splits body into its raw elements. Anything other than a
// non-empty array of objects is rejected.
func parseBatch(body []byte) ([]json.RawMessage, error) {
	var docs []json.RawMessage
	if err := json.Unmarshal(body, &docs); err != nil || len(docs) == 0 {
		return nil, errInvalidBatch
	}
	for _, doc := range docs {
		if trimmed := bytes.TrimSpace(doc); len(trimmed) == 0 || trimmed[0] != '{' {
			return nil, errInvalidBatch
		}
	}
	return docs, nil
}

func (s *Server) handleIngest(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		s.metrics.batches.WithLabelValues(outcomeRejected).Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidBatch})
		return
	}

	docs, err := parseBatch(body)
	if err != nil {
		s.metrics.batches.WithLabelValues(outcomeRejected).Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidBatch})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.config.IngestTimeout)
	defer cancel()

	batchID := uuid.NewString()
	s.logger.Info("received batch", "batch_id", batchID, "records", len(docs))

	start := time.Now()
	sent, err := s.dispatcher.Dispatch(ctx, batchID, docs)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		s.metrics.observeBatch(outcomeFailed, sent, len(docs)-sent, elapsed)
		s.logger.Error("failed to dispatch batch",
			"batch_id", batchID,
			"records", len(docs),
			"sent", sent,
			"error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgBatchFailed})
		return
	}

	s.metrics.observeBatch(outcomeAccepted, sent, 0, elapsed)
	c.JSON(http.StatusAccepted, gin.H{
		"status":           "success",
		"records_accepted": len(docs),
	})
}

func (s *Server) handleListSensors(c *gin.Context) {
	sensors, err := s.config.SensorStore.ListSensors(c.Request.Context())
	if err != nil {
		s.metrics.listRequests.WithLabelValues("error").Inc()
		s.logger.Error("failed to list sensors", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgListFailed})
		return
	}
	if sensors == nil {
		sensors = []domain.SensorRecord{}
	}

	s.metrics.listRequests.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, sensors)
}

func (s *Server) handleNearbySensors(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lon, errLon := strconv.ParseFloat(c.Query("lon"), 64)
	if errLat != nil || errLon != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lon query parameters must be numbers"})
		return
	}

	radius := defaultNearbyRadiusKm
	if raw := c.Query("radius_km"); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "radius_km must be a number"})
			return
		}
		radius = r
	}

	idx, err := s.catalog.Index(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to load sensor catalog", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgListFailed})
		return
	}

	results, err := idx.Within(lat, lon, radius)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if results == nil {
		results = []geo.Nearby{}
	}

	c.JSON(http.StatusOK, results)
}
