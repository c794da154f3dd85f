package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/stenograf/stenograf/internal/models"
	"github.com/stenograf/stenograf/internal/repository"
)

// VideoHandler serves content store reads and administrative deletes.
type VideoHandler struct {
	videos   repository.VideoRepository
	segments repository.SegmentRepository
}

// NewVideoHandler creates a video handler.
func NewVideoHandler(videos repository.VideoRepository, segments repository.SegmentRepository) *VideoHandler {
	return &VideoHandler{videos: videos, segments: segments}
}

// GetVideoInput identifies one video.
type GetVideoInput struct {
	ID uint `path:"id" doc:"Video ID"`
}

// GetVideoOutput is the single-video response.
type GetVideoOutput struct {
	Body models.Video
}

// GetVideoSegmentsInput identifies one video's segments.
type GetVideoSegmentsInput struct {
	ID uint `path:"id" doc:"Video ID"`
}

// GetVideoSegmentsBody is the segment list body.
type GetVideoSegmentsBody struct {
	Segments []*models.TranscriptSegment `json:"segments"`
}

// GetVideoSegmentsOutput is the segment list response.
type GetVideoSegmentsOutput struct {
	Body GetVideoSegmentsBody
}

// DeleteVideoInput identifies one video to delete.
type DeleteVideoInput struct {
	ID uint `path:"id" doc:"Video ID"`
}

// DeleteVideoOutput is the delete response.
type DeleteVideoOutput struct {
	Status int
}

// DeleteDatasetInput selects a dataset to delete.
type DeleteDatasetInput struct {
	Dataset    string `path:"dataset" enum:"trump,tweede_kamer,video_library" doc:"Dataset tag"`
	SourceType string `query:"source_type" enum:"html,xml,video_file" doc:"Optionally restrict to one source type"`
}

// DeleteDatasetBody reports the number of removed videos.
type DeleteDatasetBody struct {
	Removed int64 `json:"removed"`
}

// DeleteDatasetOutput is the dataset delete response.
type DeleteDatasetOutput struct {
	Body DeleteDatasetBody
}

// Register registers the video routes with the API.
func (h *VideoHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getVideo",
		Method:      "GET",
		Path:        "/api/v1/videos/{id}",
		Summary:     "Get video",
		Tags:        []string{"Videos"},
	}, h.GetVideo)

	huma.Register(api, huma.Operation{
		OperationID: "getVideoSegments",
		Method:      "GET",
		Path:        "/api/v1/videos/{id}/segments",
		Summary:     "Get video segments",
		Description: "Returns a video's transcript segments ordered by offset",
		Tags:        []string{"Videos"},
	}, h.GetVideoSegments)

	huma.Register(api, huma.Operation{
		OperationID:   "deleteVideo",
		Method:        "DELETE",
		Path:          "/api/v1/videos/{id}",
		Summary:       "Delete video",
		Description:   "Deletes a video, cascading to its segments and topic edges",
		Tags:          []string{"Videos"},
		DefaultStatus: 204,
	}, h.DeleteVideo)

	huma.Register(api, huma.Operation{
		OperationID: "deleteDataset",
		Method:      "DELETE",
		Path:        "/api/v1/datasets/{dataset}",
		Summary:     "Delete dataset",
		Description: "Deletes every video in a dataset, optionally restricted to one source type",
		Tags:        []string{"Videos"},
	}, h.DeleteDataset)
}

// GetVideo returns one video.
func (h *VideoHandler) GetVideo(ctx context.Context, input *GetVideoInput) (*GetVideoOutput, error) {
	video, err := h.videos.GetByID(ctx, input.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("loading video", err)
	}
	if video == nil {
		return nil, huma.Error404NotFound("video not found")
	}
	return &GetVideoOutput{Body: *video}, nil
}

// GetVideoSegments returns a video's segments ordered by offset.
func (h *VideoHandler) GetVideoSegments(ctx context.Context, input *GetVideoSegmentsInput) (*GetVideoSegmentsOutput, error) {
	video, err := h.videos.GetByID(ctx, input.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("loading video", err)
	}
	if video == nil {
		return nil, huma.Error404NotFound("video not found")
	}

	segments, err := h.segments.GetByVideoID(ctx, input.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("loading segments", err)
	}
	return &GetVideoSegmentsOutput{Body: GetVideoSegmentsBody{Segments: segments}}, nil
}

// DeleteVideo deletes one video.
func (h *VideoHandler) DeleteVideo(ctx context.Context, input *DeleteVideoInput) (*DeleteVideoOutput, error) {
	video, err := h.videos.GetByID(ctx, input.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("loading video", err)
	}
	if video == nil {
		return nil, huma.Error404NotFound("video not found")
	}
	if err := h.videos.Delete(ctx, input.ID); err != nil {
		return nil, huma.Error500InternalServerError("deleting video", err)
	}
	return &DeleteVideoOutput{Status: 204}, nil
}

// DeleteDataset deletes every video in a dataset.
func (h *VideoHandler) DeleteDataset(ctx context.Context, input *DeleteDatasetInput) (*DeleteDatasetOutput, error) {
	var sourceType *models.SourceType
	if input.SourceType != "" {
		st := models.SourceType(input.SourceType)
		sourceType = &st
	}
	removed, err := h.videos.DeleteDataset(ctx, models.Dataset(input.Dataset), sourceType)
	if err != nil {
		return nil, huma.Error500InternalServerError("deleting dataset", err)
	}
	return &DeleteDatasetOutput{Body: DeleteDatasetBody{Removed: removed}}, nil
}
