package notionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/finance-client/internal/logger"
)

// pageSize is the Notion query page size.
const pageSize = 100

// SyncResult counts what a sync did (or would do in dry-run mode).
type SyncResult struct {
	Created  int  `json:"created"`
	Updated  int  `json:"updated"`
	Archived int  `json:"archived"`
	Failed   int  `json:"failed"`
	DryRun   bool `json:"dryRun"`
}

// SyncMonthlyReport upserts one page per month into databaseID. Pages are
// matched on their Month title: an existing page is updated, a missing one
// is created, and duplicate pages for the same month are archived. A failed
// page write is logged and counted; the sync continues with the next month.
func SyncMonthlyReport(ctx context.Context, notionClient NotionService, databaseID string, months []MonthReport, dryRun bool) (SyncResult, error) {
	log := logger.FromContext(ctx)
	result := SyncResult{DryRun: dryRun}

	log.Info().
		Int("months", len(months)).
		Bool("dry_run", dryRun).
		Msg("Starting monthly report sync to Notion")

	pages, err := queryAllNotionPages(ctx, notionClient, databaseID)
	if err != nil {
		return result, fmt.Errorf("SyncMonthlyReport: querying Notion pages: %w", err)
	}

	existing := make(map[string]string, len(pages))
	var duplicates []notionapi.Page
	for _, page := range pages {
		title := pageTitle(page)
		if title == "" {
			continue
		}
		if _, seen := existing[title]; seen {
			duplicates = append(duplicates, page)
			continue
		}
		existing[title] = string(page.ID)
	}

	log.Info().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	now := time.Now()
	for _, m := range months {
		props := MonthReportToNotionProperties(m, now)
		pageID, found := existing[m.Month]

		switch {
		case dryRun && found:
			log.Info().Str("month", m.Month).Str("page_id", pageID).Msg("[DRY RUN] Would update Notion page")
			result.Updated++
		case dryRun:
			log.Info().Str("month", m.Month).Msg("[DRY RUN] Would create Notion page")
			result.Created++
		case found:
			if _, err := notionClient.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().Err(err).Str("month", m.Month).Str("page_id", pageID).Msg("Failed to update Notion page")
				result.Failed++
				continue
			}
			result.Updated++
		default:
			page, err := notionClient.CreatePage(ctx, databaseID, props)
			if err != nil {
				log.Warn().Err(err).Str("month", m.Month).Msg("Failed to create Notion page")
				result.Failed++
				continue
			}
			existing[m.Month] = string(page.ID)
			result.Created++
		}
	}

	for _, page := range duplicates {
		if dryRun {
			log.Info().Str("page_id", string(page.ID)).Msg("[DRY RUN] Would archive duplicate Notion page")
			result.Archived++
			continue
		}
		if err := notionClient.ArchivePage(ctx, string(page.ID)); err != nil {
			log.Warn().Err(err).Str("page_id", string(page.ID)).Msg("Failed to archive duplicate Notion page")
			result.Failed++
			continue
		}
		result.Archived++
	}

	log.Info().
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("archived", result.Archived).
		Int("failed", result.Failed).
		Msg("Monthly report sync completed")

	return result, nil
}

// queryAllNotionPages follows the query cursor until HasMore is false.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: pageSize,
		}

		// Only set StartCursor if we have a cursor value
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
