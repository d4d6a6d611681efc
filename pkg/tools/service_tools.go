package tools

import (
	"context"
	"fmt"
	"strings"

	mcerrors "github.com/otherjamesbrown/meetchat/pkg/errors"
	"github.com/otherjamesbrown/meetchat/pkg/images"
	"github.com/otherjamesbrown/meetchat/pkg/logging"
	"github.com/otherjamesbrown/meetchat/pkg/meeting"
	"github.com/otherjamesbrown/meetchat/pkg/sentiment"
)

// confidenceBand maps a classifier confidence to a qualitative band.
func confidenceBand(c float64) string {
	switch {
	case c < 0.3:
		return "low"
	case c < 0.7:
		return "moderate"
	default:
		return "high"
	}
}

// SentimentReport is the structured form of analyzeMeetingSentiment.
type SentimentReport struct {
	Participant string          `json:"participant,omitempty"`
	Sentiment   sentiment.Label `json:"sentiment"`
	Confidence  float64         `json:"confidence"`
	Band        string          `json:"band"`
	Examples    []string        `json:"examples"`
}

func (tb *Toolbox) meetingSentiment(ctx context.Context, args *ParticipantArgs) (Result, error) {
	_, t, err := tb.loadTranscript(ctx)
	if err != nil {
		return Result{}, err
	}

	participant := strings.TrimSpace(args.Participant)
	var statements []string
	for _, turn := range t.Turns() {
		if participant != "" && !matchesName(turn.Speaker, participant) {
			continue
		}
		statements = append(statements, turn.Text())
	}
	if participant == "" && len(statements) == 0 {
		statements = []string{t.Text()}
	}
	if len(statements) == 0 {
		return empty(AnalyzeMeetingSentiment, fmt.Sprintf("No statements found from %s.", participant)), nil
	}

	res, err := tb.d.sentiment.Classify(ctx, statements)
	if err == nil && res == nil {
		err = fmt.Errorf("sentiment classifier returned no result: %w", mcerrors.ErrUpstream)
	}
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, err
		}
		return Result{}, mcerrors.NewToolError(mcerrors.FailureUpstream, AnalyzeMeetingSentiment.String(), msgSentimentFailed, err)
	}

	report := SentimentReport{
		Participant: participant,
		Sentiment:   res.Sentiment,
		Confidence:  res.Confidence,
		Band:        confidenceBand(res.Confidence),
		Examples:    res.Examples,
	}

	subject := "The overall sentiment of this meeting"
	if participant != "" {
		subject = fmt.Sprintf("The sentiment of %s's statements", participant)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s is %s (%s confidence, %.2f).", subject, report.Sentiment, report.Band, report.Confidence)
	if len(report.Examples) > 0 {
		b.WriteString("\nExamples:")
		for _, ex := range report.Examples {
			fmt.Fprintf(&b, "\n- %q", ex)
		}
	}
	return ok(AnalyzeMeetingSentiment, b.String(), report), nil
}

// styleInstructions are appended to image prompts per style.
var styleInstructions = map[images.Style]string{
	images.StyleProfessional: "Use a clean, corporate visual style with a muted color palette, clear composition and no text overlays.",
	images.StyleCreative:     "Use a vibrant, illustrative style with bold colors and playful composition.",
	images.StyleAbstract:     "Use an abstract style built from shapes, gradients and symbolic forms rather than literal scenes.",
}

const summaryExcerptRunes = 300

// buildImagePrompt enriches the user's description with meeting context.
func buildImagePrompt(m *meeting.Meeting, sum *meeting.Summary, description string, style images.Style) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create an image for the meeting %q.", m.Title)
	if sum != nil && strings.TrimSpace(sum.Text) != "" {
		fmt.Fprintf(&b, " Meeting context: %s", truncateRunes(sum.Text, summaryExcerptRunes))
	}
	fmt.Fprintf(&b, " Image request: %s.", strings.TrimRight(strings.TrimSpace(description), "."))
	b.WriteString(" ")
	b.WriteString(styleInstructions[style])
	return b.String()
}

func imageFailure(msg string) Result {
	return Result{
		Tool:    GenerateImage.String(),
		Text:    msg,
		Data:    ImageResult{Success: false, Message: msg},
		Failure: mcerrors.FailureUpstream,
	}
}

func (tb *Toolbox) generateImage(ctx context.Context, args *GenerateImageArgs) (Result, error) {
	m, err := tb.loadMeeting(ctx)
	if err != nil {
		return Result{}, err
	}

	style := images.Style(strings.ToLower(strings.TrimSpace(args.Style)))
	if style == "" {
		style = images.StyleProfessional
	}
	if _, known := styleInstructions[style]; !known {
		return Result{}, malformed(fmt.Sprintf("Unknown image style %q.", args.Style))
	}

	if tb.d.generator == nil {
		return imageFailure(msgImageDisabled), nil
	}

	sum, err := tb.loadSummary(ctx)
	if err != nil {
		return Result{}, err
	}
	prompt := buildImagePrompt(m, sum, args.Description, style)

	logger := tb.d.logger.WithContext(ctx).With(
		logging.F("tool", GenerateImage.String()),
		logging.F("meeting_id", tb.meetingID),
	)

	url, err := tb.d.generator.Generate(ctx, prompt, style)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, err
		}
		logger.Warn("Image generation failed", logging.Err(err))
		return imageFailure(msgImageFailed), nil
	}

	img := images.NewImage(tb.meetingID, args.Description, style, prompt, url)
	mu := tb.d.imageLock(tb.meetingID)
	mu.Lock()
	err = tb.d.images.Save(ctx, img)
	mu.Unlock()
	if err != nil {
		logger.Error("Failed to save generated image", logging.Err(err))
		return imageFailure(msgImageFailed), nil
	}
	tb.d.metrics.RecordImageSaved()

	msg := fmt.Sprintf("Here is the %s image for %q.", style, args.Description)
	markdown := fmt.Sprintf("![%s](%s)", args.Description, url)
	return ok(GenerateImage, msg+"\n\n"+markdown, ImageResult{
		Success:  true,
		Message:  msg,
		ImageURL: url,
		Markdown: markdown,
	}), nil
}

const (
	defaultImageLimit = 10
	maxImageLimit     = 50
)

func (tb *Toolbox) listImages(ctx context.Context, args *ListImagesArgs) (Result, error) {
	if _, err := tb.loadMeeting(ctx); err != nil {
		return Result{}, err
	}

	limit := args.Limit
	switch {
	case limit <= 0:
		limit = defaultImageLimit
	case limit > maxImageLimit:
		limit = maxImageLimit
	}
	order := images.Order(strings.ToLower(args.SortBy))
	if order != images.Oldest {
		order = images.Newest
	}

	imgs, err := tb.d.images.List(ctx, tb.meetingID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list images: %w", err)
	}
	if len(imgs) == 0 {
		return empty(ListGeneratedImages, msgNoImages), nil
	}

	total := len(imgs)
	images.Sort(imgs, order)
	if len(imgs) > limit {
		imgs = imgs[:limit]
	}

	lines := []string{fmt.Sprintf("%d %s generated for this meeting:", total, plural(total, "image", "images"))}
	for i, img := range imgs {
		lines = append(lines, fmt.Sprintf("%d. %s (%s, %s)\n   ![%s](%s)",
			i+1, img.Description, img.Style, img.CreatedAt.Format("2006-01-02 15:04"), img.Description, img.URL))
	}
	return ok(ListGeneratedImages, strings.Join(lines, "\n"), map[string]any{
		"total":  total,
		"images": imgs,
	}), nil
}
