package stats

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"srtools/internal/formatter"
	"srtools/internal/models"
	"srtools/pkg/marker"
	"srtools/pkg/utils"
)

const (
	// MaxBodySize is the largest report body that can be posted.
	MaxBodySize = 40000
	// TitlePrefix starts the title of every report.
	TitlePrefix = "Subreddit Stats:"

	topItems          = 10
	submitterItems    = 10
	sectionHeader     = "---\n### %s\n"
	generatorLine     = ">Generated with srtools Subreddit Stats  \n"
	deletedUserMarkup = "_deleted_"
)

// Report is a rendered report.
type Report struct {
	Title       string
	Body        string
	Basic       string
	Submitters  string
	Commenters  string
	Submissions string
	Comments    string
	Footer      string
	// SubmittersShown is the submitter count the body was rendered with.
	SubmittersShown int
}

func (r *Report) join() string {
	return r.Basic + r.Submitters + r.Commenters + r.Submissions + r.Comments + r.Footer
}

// Render builds the report. The submitters section shrinks one author at a
// time until the body fits MaxBodySize or no submitter is left.
func (s *Stats) Render() *Report {
	r := &Report{
		Basic:       s.basicStats(),
		Commenters:  s.topCommenters(s.opts.Commenters),
		Submissions: s.topSubmissions(topItems),
		Comments:    s.topComments(topItems),
		Footer:      s.footer(),
	}

	n := min(s.opts.Submitters, len(s.Submitters))

	for {
		r.Submitters = s.topSubmitters(n)
		r.SubmittersShown = n
		r.Body = r.join()

		if len(r.Body) <= MaxBodySize || n <= 0 {
			break
		}

		n--
	}

	if len(r.Body) > MaxBodySize {
		s.logger.Warn("report exceeds maximum size", "bytes", len(r.Body), "max", MaxBodySize)
	}

	r.Title = s.title()

	return r
}

// title names the analysed subreddit unless the report is posted to it.
func (s *Stats) title() string {
	var sb strings.Builder

	sb.WriteString(TitlePrefix)
	sb.WriteString(" ")

	if !strings.EqualFold(s.opts.PublishTo, s.opts.Subreddit) {
		sb.WriteString(s.opts.Subreddit)
		sb.WriteString(" ")
	}

	if s.top != "" {
		sb.WriteString("top ")
	}

	fmt.Fprintf(&sb, "posts from %s to %s",
		s.MinDate.UTC().Format(time.DateOnly),
		s.MaxDate.UTC().Format("2006-01-02 15:04 UTC"))

	return sb.String()
}

func (s *Stats) basicStats() string {
	subDuration := s.MaxDate.Sub(s.MinDate)

	var commentDuration time.Duration
	if len(s.Comments) > 0 {
		commentDuration = s.Comments[len(s.Comments)-1].Created.Sub(s.Comments[0].Created)
	}

	subScore := 0
	for _, sub := range s.Submissions {
		subScore += sub.Score
	}

	commentScore := 0
	for _, c := range s.Comments {
		commentScore += c.Score
	}

	table := formatter.Table(
		[]string{"", "Submissions", "Comments"},
		[]formatter.Alignment{formatter.AlignCenter, formatter.AlignRight, formatter.AlignRight},
		[][]string{
			{"__Total__", strconv.Itoa(len(s.Submissions)), strconv.Itoa(len(s.Comments))},
			{"__Rate (per day)__", rate(len(s.Submissions), subDuration), rate(len(s.Comments), commentDuration)},
			{"__Unique Redditors__", strconv.Itoa(len(s.Submitters)), strconv.Itoa(len(s.Commenters))},
			{"__Combined Score__", strconv.Itoa(subScore), strconv.Itoa(commentScore)},
		},
	)

	return fmt.Sprintf("Period: %.2f days\n\n", subDuration.Hours()/24) + table + "\n"
}

// rate is the number of items per day over d, or n when d is zero.
func rate(n int, d time.Duration) string {
	if d <= 0 {
		return fmt.Sprintf("%.2f", float64(n))
	}

	return fmt.Sprintf("%.2f", float64(n)*float64(day)/float64(d))
}

// authorRank is an author with the total score and count of their items.
type authorRank struct {
	name  string
	score int
	count int
}

// rankAuthors orders authors by total score, then item count, both
// descending, then by name.
func rankAuthors[T any](groups map[string][]T, score func(T) int) []authorRank {
	ranks := make([]authorRank, 0, len(groups))

	for name, items := range groups {
		r := authorRank{name: name, count: len(items)}
		for _, item := range items {
			r.score += score(item)
		}

		ranks = append(ranks, r)
	}

	slices.SortFunc(ranks, func(a, b authorRank) int {
		return cmp.Or(
			cmp.Compare(b.score, a.score),
			cmp.Compare(b.count, a.count),
			cmp.Compare(a.name, b.name),
		)
	})

	return ranks
}

func submissionScore(s models.Submission) int { return s.Score }

func commentScore(c models.Comment) int { return c.Score }

// TopSubmitters returns the names of the n best submitters in report order.
func (s *Stats) TopSubmitters(n int) []string {
	ranks := rankAuthors(s.Submitters, submissionScore)

	names := make([]string, 0, min(n, len(ranks)))
	for _, r := range ranks[:min(n, len(ranks))] {
		names = append(names, r.name)
	}

	return names
}

func (s *Stats) topSubmitters(n int) string {
	n = min(n, len(s.Submitters))
	if n <= 0 {
		return ""
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, sectionHeader, "Top Submitters' Top Submissions")

	for _, r := range rankAuthors(s.Submitters, submissionScore)[:n] {
		fmt.Fprintf(&sb, "1. %s, %s: %s\n",
			utils.Plural(r.score, "point"), utils.Plural(r.count, "submission"), userLink(r.name))

		subs := slices.Clone(s.Submitters[r.name])
		slices.SortFunc(subs, func(a, b models.Submission) int {
			return cmp.Or(cmp.Compare(b.Score, a.Score), cmp.Compare(a.Title, b.Title))
		})

		for _, sub := range subs[:min(submitterItems, len(subs))] {
			fmt.Fprintf(&sb, "  1. %s (%s, [%s](%s))\n",
				titleLink(sub), utils.Plural(sub.Score, "point"),
				utils.Plural(sub.NumComments, "comment"), submissionPermalink(sub))
		}

		sb.WriteString("\n")
	}

	return sb.String()
}

func (s *Stats) topCommenters(n int) string {
	n = min(n, len(s.Commenters))
	if n <= 0 {
		return ""
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, sectionHeader, "Top Commenters")

	for _, r := range rankAuthors(s.Commenters, commentScore)[:n] {
		fmt.Fprintf(&sb, "1. %s (%s, %s)\n",
			userLink(r.name), utils.Plural(r.score, "point"), utils.Plural(r.count, "comment"))
	}

	return sb.String() + "\n"
}

func (s *Stats) topSubmissions(n int) string {
	subs := make([]models.Submission, 0, len(s.Submissions))
	for _, sub := range s.Submissions {
		if s.opts.IncludeDistinguished || !sub.IsDistinguished() {
			subs = append(subs, sub)
		}
	}

	n = min(n, len(subs))
	if n <= 0 {
		return ""
	}

	slices.SortFunc(subs, func(a, b models.Submission) int {
		return cmp.Or(
			cmp.Compare(b.Score, a.Score),
			cmp.Compare(b.NumComments, a.NumComments),
			cmp.Compare(a.Title, b.Title),
			cmp.Compare(a.ID, b.ID),
		)
	})

	var sb strings.Builder

	fmt.Fprintf(&sb, sectionHeader, "Top Submissions")

	for _, sub := range subs[:n] {
		fmt.Fprintf(&sb, "1. %s by %s (%s, [%s](%s))\n",
			titleLink(sub), userLink(sub.Author), utils.Plural(sub.Score, "point"),
			utils.Plural(sub.NumComments, "comment"), submissionPermalink(sub))
	}

	return sb.String() + "\n"
}

func (s *Stats) topComments(n int) string {
	comments := make([]models.Comment, 0, len(s.Comments))
	for _, c := range s.Comments {
		if s.opts.IncludeDistinguished || !c.IsDistinguished() {
			comments = append(comments, c)
		}
	}

	n = min(n, len(comments))
	if n <= 0 {
		return ""
	}

	slices.SortFunc(comments, func(a, b models.Comment) int {
		return cmp.Or(cmp.Compare(b.Score, a.Score), cmp.Compare(a.Author, b.Author), cmp.Compare(a.ID, b.ID))
	})

	var sb strings.Builder

	fmt.Fprintf(&sb, sectionHeader, "Top Comments")

	for _, c := range comments[:n] {
		title := ""
		if c.Submission != nil {
			title = safeTitle(c.Submission.Title)
		}

		fmt.Fprintf(&sb, "1. %s: %s's [comment](%s) in %s\n",
			utils.Plural(c.Score, "point"), userLink(c.Author), commentPermalink(c), title)
	}

	return sb.String() + "\n"
}

func (s *Stats) footer() string {
	var sb strings.Builder

	sb.WriteString(generatorLine)

	if s.PrevPermalink != "" {
		fmt.Fprintf(&sb, "[Previous Stats](%s)  \n", s.PrevPermalink)
	}

	// blank line first so reformatting leaves the marker in place
	sb.WriteString("\n" + marker.Format(s.MaxDate))

	return sb.String()
}

// userLink renders a profile link, or a placeholder for deleted accounts.
func userLink(name string) string {
	if name == "" {
		return deletedUserMarkup
	}

	return fmt.Sprintf("[%s](/u/%s)", strings.ReplaceAll(name, "_", `\_`), name)
}

func safeTitle(title string) string {
	return utils.EscapeMarkdown(utils.SingleLine(title))
}

// titleLink links the title to the submitted url, or returns the bare title
// for self posts whose url is their own permalink.
func titleLink(sub models.Submission) string {
	title := safeTitle(sub.Title)
	if sub.URL == "" || sub.IsSelf || (sub.Permalink != "" && strings.Contains(sub.URL, sub.Permalink)) {
		return title
	}

	return fmt.Sprintf("[%s](%s)", title, sub.URL)
}

func submissionPermalink(sub models.Submission) string {
	return "/comments/" + sub.ID
}

func commentPermalink(c models.Comment) string {
	return fmt.Sprintf("/comments/%s/_/%s?context=1", c.SubmissionID(), c.ID)
}
