// Package api is the structured-source strategy: the Brightspace Valence REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/coursepilot/internal/extract"
	"github.com/ppiankov/coursepilot/internal/fetch"
	"github.com/ppiankov/coursepilot/internal/logging"
	"github.com/ppiankov/coursepilot/internal/model"
	"github.com/ppiankov/coursepilot/internal/util"
)

// ErrMalformed means the endpoint answered 2xx with a payload we cannot use
var ErrMalformed = errors.New("malformed payload")

// courseOfferingType is the org unit type id of a course offering
const courseOfferingType = 3

// maxPages bounds enrollment paging in case the bookmark never advances
const maxPages = 50

// Getter is the HTTP surface the strategy needs; *fetch.Fetcher implements it
type Getter interface {
	Get(ctx context.Context, rawURL, accept string) (*fetch.Result, error)
}

// Client talks to the Valence API of one Brightspace tenant
type Client struct {
	http      Getter
	baseURL   string
	lpVersion string
	leVersion string
	logger    *zap.Logger
}

// New creates the API strategy
func New(getter Getter, cfg model.SourceConfig, logger *zap.Logger) *Client {
	return &Client{
		http:      getter,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		lpVersion: cfg.LPVersion,
		leVersion: cfg.LEVersion,
		logger:    logging.OrNop(logger),
	}
}

var _ extract.Strategy = (*Client)(nil)

// Name implements extract.Strategy
func (c *Client) Name() model.Strategy {
	return model.StrategyAPI
}

// Courses lists the user's enrollments, following bookmarks until HasMoreItems is false
func (c *Client) Courses(ctx context.Context) extract.Outcome[model.Course] {
	var (
		courses  []model.Course
		bookmark string
	)

	for page := 0; page < maxPages; page++ {
		endpoint := fmt.Sprintf("%s/d2l/api/lp/%s/enrollments/myenrollments/", c.baseURL, c.lpVersion)
		if bookmark != "" {
			endpoint += "?bookmark=" + url.QueryEscape(bookmark)
		}

		var resp enrollmentPage
		if err := c.getJSON(ctx, endpoint, &resp); err != nil {
			return extract.Failure[model.Course](err)
		}
		if resp.Items == nil {
			return extract.Failure[model.Course](fmt.Errorf("%w: enrollments without Items", ErrMalformed))
		}

		for _, e := range *resp.Items {
			if e.OrgUnit.Type != nil && e.OrgUnit.Type.ID != courseOfferingType {
				continue
			}
			if e.OrgUnit.ID == "" {
				continue
			}
			courses = append(courses, c.course(e))
		}

		if !resp.PagingInfo.HasMoreItems || resp.PagingInfo.Bookmark == "" || resp.PagingInfo.Bookmark == bookmark {
			break
		}
		bookmark = resp.PagingInfo.Bookmark
	}

	c.logger.Debug("enrollments fetched", zap.Int("courses", len(courses)))
	return extract.Success(courses)
}

func (c *Client) course(e enrollment) model.Course {
	id := string(e.OrgUnit.ID)
	return model.Course{
		ID:        id,
		Name:      strings.TrimSpace(e.OrgUnit.Name),
		Code:      strings.TrimSpace(e.OrgUnit.Code),
		Homepage:  model.StringPtr(c.homepage(id, e.OrgUnit.HomeURL)),
		IsActive:  e.Access.IsActive,
		StartDate: model.TimePtr(e.Access.StartDate),
		EndDate:   model.TimePtr(e.Access.EndDate),
	}
}

func (c *Client) homepage(id, homeURL string) string {
	if homeURL == "" {
		return c.baseURL + "/d2l/home/" + id
	}
	return c.absolute(homeURL)
}

func (c *Client) absolute(ref string) string {
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

// Grades fetches the user's grade values for one course
func (c *Client) Grades(ctx context.Context, course model.Course) extract.Outcome[model.Grade] {
	var values []gradeValue
	if err := c.getList(ctx, c.lePath(course, "grades/values/myGradeValues/"), &values); err != nil {
		return extract.Failure[model.Grade](err)
	}

	grades := make([]model.Grade, 0, len(values))
	for _, v := range values {
		grades = append(grades, model.Grade{
			Name:              strings.TrimSpace(v.GradeObjectName),
			DisplayedGrade:    model.StringPtr(v.DisplayedGrade),
			PointsNumerator:   v.PointsNumerator,
			PointsDenominator: v.PointsDenominator,
			LastModified:      model.TimePtr(v.LastModified),
		})
	}
	return extract.Success(grades)
}

// Assignments fetches the dropbox folders of one course
func (c *Client) Assignments(ctx context.Context, course model.Course) extract.Outcome[model.Assignment] {
	var folders []dropboxFolder
	if err := c.getList(ctx, c.lePath(course, "dropbox/folders/"), &folders); err != nil {
		return extract.Failure[model.Assignment](err)
	}

	assignments := make([]model.Assignment, 0, len(folders))
	for _, f := range folders {
		a := model.Assignment{
			Name:    strings.TrimSpace(f.Name),
			DueDate: model.TimePtr(f.DueDate),
		}
		if f.IsHidden {
			a.Status = model.StringPtr("hidden")
		}
		if f.ID != "" {
			a.Link = model.StringPtr(fmt.Sprintf("%s/d2l/lms/dropbox/user/folder_submit_files.d2l?db=%s&ou=%s",
				c.baseURL, f.ID, url.QueryEscape(course.ID)))
		}
		assignments = append(assignments, a)
	}
	return extract.Success(assignments)
}

// Announcements fetches the news items of one course
func (c *Client) Announcements(ctx context.Context, course model.Course) extract.Outcome[model.Announcement] {
	var items []newsItem
	if err := c.getList(ctx, c.lePath(course, "news/"), &items); err != nil {
		return extract.Failure[model.Announcement](err)
	}

	out := make([]model.Announcement, 0, len(items))
	for _, n := range items {
		body := n.Body.Text
		if strings.TrimSpace(body) == "" {
			body = util.HTMLText(n.Body.HTML)
		}
		out = append(out, model.Announcement{
			Title:       strings.TrimSpace(n.Title),
			Body:        model.StringPtr(util.CollapseSpace(body)),
			PublishDate: model.TimePtr(n.StartDate),
		})
	}
	return extract.Success(out)
}

func (c *Client) lePath(course model.Course, suffix string) string {
	return fmt.Sprintf("%s/d2l/api/le/%s/%s/%s", c.baseURL, c.leVersion, url.PathEscape(course.ID), suffix)
}

// getList decodes a JSON array; null or non-array payloads are malformed
func (c *Client) getList(ctx context.Context, endpoint string, out any) error {
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return err
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return fmt.Errorf("%w: %s: expected a JSON array", ErrMalformed, endpoint)
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, endpoint, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, endpoint, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	res, err := c.http.Get(ctx, endpoint, "application/json")
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}
