package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/jekabolt/grbpwr-attribution/internal/dto"
	"github.com/jekabolt/grbpwr-attribution/internal/engine"
	"github.com/jekabolt/grbpwr-attribution/internal/entity"
	gerr "github.com/jekabolt/grbpwr-attribution/internal/errors"
)

const dateLayout = "2006-01-02"

func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, dto.ConvertModels(s.engine.Models(), s.engine.DefaultModel()))
}

func (s *Server) getChannels(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		renderError(w, r, err)
		return
	}
	res, err := s.engine.ChannelPerformance(r.Context(), req)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, dto.ChannelsResponse{
		Meta:     dto.ConvertEnvelope(res.Envelope),
		Channels: dto.ConvertChannels(res.Channels),
		Totals:   dto.ConvertTotals(res.Totals),
	})
}

func (s *Server) getCampaigns(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		renderError(w, r, err)
		return
	}
	res, err := s.engine.CampaignPerformance(r.Context(), req)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, dto.CampaignsResponse{
		Meta:      dto.ConvertEnvelope(res.Envelope),
		Campaigns: dto.ConvertCampaigns(res.Campaigns),
		Totals:    dto.ConvertTotals(res.Totals),
	})
}

func (s *Server) getHierarchy(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		renderError(w, r, err)
		return
	}
	res, err := s.engine.Hierarchy(r.Context(), req)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, dto.HierarchyResponse{
		Meta:      dto.ConvertEnvelope(res.Envelope),
		Campaigns: dto.ConvertHierarchy(res.Campaigns),
	})
}

func (s *Server) getTimeseries(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		renderError(w, r, err)
		return
	}
	res, err := s.engine.Timeseries(r.Context(), req)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, dto.TimeseriesResponse{
		Meta:   dto.ConvertEnvelope(res.Envelope),
		Points: dto.ConvertTimeSeries(res.Points),
	})
}

func (s *Server) getCohorts(w http.ResponseWriter, r *http.Request) {
	req, err := parseCohortRequest(r)
	if err != nil {
		renderError(w, r, err)
		return
	}
	res, err := s.engine.Cohorts(r.Context(), req)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, dto.CohortsResponse{
		Meta:        dto.ConvertEnvelope(res.Envelope),
		Granularity: string(res.Granularity),
		Cohorts:     dto.ConvertCohorts(res.Cohorts),
		Summary:     dto.ConvertCohortSummary(res.Summary),
	})
}

func parseRequest(r *http.Request) (engine.Request, error) {
	q := r.URL.Query()
	req := engine.Request{
		Account: chi.URLParam(r, "account"),
		Model:   q.Get("model"),
		Mode:    entity.DataMode(q.Get("data_mode")),
	}
	var err error
	if req.StartDate, req.EndDate, err = parseDates(q.Get("start_date"), q.Get("end_date")); err != nil {
		return req, err
	}
	if v := q.Get("window_days"); v != "" {
		if req.WindowDays, err = strconv.Atoi(v); err != nil {
			return req, fmt.Errorf("%w: window_days %q", gerr.InvalidFilter, v)
		}
	}
	req.Channels = list(q["channel"])
	if req.CampaignIDs, err = ids("campaign_id", q["campaign_id"]); err != nil {
		return req, err
	}
	return req, nil
}

func parseCohortRequest(r *http.Request) (engine.CohortRequest, error) {
	q := r.URL.Query()
	req := engine.CohortRequest{
		Account:     chi.URLParam(r, "account"),
		Granularity: entity.CohortGranularity(q.Get("granularity")),
	}
	if req.Granularity == "" {
		req.Granularity = entity.CohortMonth
	}
	var err error
	if req.StartDate, req.EndDate, err = parseDates(q.Get("start_date"), q.Get("end_date")); err != nil {
		return req, err
	}
	if v := q.Get("max_periods"); v != "" {
		if req.MaxPeriods, err = strconv.Atoi(v); err != nil {
			return req, fmt.Errorf("%w: max_periods %q", gerr.InvalidFilter, v)
		}
	}
	if req.ProductIDs, err = ids("product_id", q["product_id"]); err != nil {
		return req, err
	}
	return req, nil
}

func parseDates(start, end string) (time.Time, time.Time, error) {
	if start == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start_date is required", gerr.InvalidFilter)
	}
	from, err := time.Parse(dateLayout, start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start_date %q", gerr.InvalidFilter, start)
	}
	if end == "" {
		return from, from, nil
	}
	to, err := time.Parse(dateLayout, end)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end_date %q", gerr.InvalidFilter, end)
	}
	return from, to, nil
}

// list accepts repeated and comma separated values.
func list(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func ids(name string, values []string) ([]int64, error) {
	var out []int64
	for _, v := range list(values) {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s %q", gerr.InvalidFilter, name, v)
		}
		out = append(out, id)
	}
	return out, nil
}
