package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jinzhu/copier"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/paulexconde/surveyflow/internal/flow"
	"github.com/paulexconde/surveyflow/internal/models"
	"github.com/paulexconde/surveyflow/pkg/fault"
	"github.com/paulexconde/surveyflow/pkg/store"
	"github.com/rs/zerolog/log"
)

const (
	surveysTable   = "surveys"
	questionsTable = "questions"
	optionsTable   = "question_options"
	responsesTable = "responses"
	answersTable   = "answers"
)

// Connect opens and pings a postgres connection pool.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return db, nil
}

// Postgres persists surveys and responses. Questions and options are read only.
type Postgres struct {
	surveys   store.Datastorer[models.Survey]
	questions store.Datastorer[models.Question]
	options   store.Datastorer[models.Option]
	responses store.Datastorer[models.Response]
	answers   store.Datastorer[models.Answer]

	now func() time.Time
}

func NewPostgres(db *sqlx.DB) *Postgres {
	p := &Postgres{
		surveys:   store.NewDataStore[models.Survey](db, surveysTable),
		questions: store.NewDataStore[models.Question](db, questionsTable),
		options:   store.NewDataStore[models.Option](db, optionsTable),
		responses: store.NewDataStore[models.Response](db, responsesTable),
		answers:   store.NewDataStore[models.Answer](db, answersTable),
		now:       time.Now,
	}

	p.responses.SetHooks(store.Hooks{
		PreSave:         []func(ctx context.Context, tx *sqlx.Tx, data store.DTO, isNew bool) error{p.touchResponse},
		PostSave:        []func(ctx context.Context, tx *sqlx.Tx, data store.DTO, isNew bool) error{p.insertPendingAnswer},
		AfterSaveCommit: []func(ctx context.Context, data store.DTO, isNew bool) store.AfterSaveCommitHook{p.logResponseSaved},
	})

	return p
}

func (p *Postgres) touchResponse(_ context.Context, _ *sqlx.Tx, data store.DTO, _ bool) error {
	if row, ok := data.(*models.Response); ok {
		row.UpdatedAt = p.now().UTC()
	}
	return nil
}

// insertPendingAnswer writes the answer carried by a response row inside the
// transaction that updates the row's visited set.
func (p *Postgres) insertPendingAnswer(ctx context.Context, tx *sqlx.Tx, data store.DTO, _ bool) error {
	row, ok := data.(*models.Response)
	if !ok || row.Answer == nil {
		return nil
	}

	if _, err := tx.NamedExecContext(ctx, store.InsertQuery(answersTable, row.Answer), row.Answer); err != nil {
		return fmt.Errorf("insert answer for question %d: %w", row.Answer.QuestionID, err)
	}
	return nil
}

func (p *Postgres) logResponseSaved(_ context.Context, data store.DTO, isNew bool) store.AfterSaveCommitHook {
	row, ok := data.(*models.Response)
	if !ok {
		return nil
	}
	return func() {
		log.Debug().
			Str("responseID", row.ID).
			Bool("created", isNew).
			Int("visited", len(row.VisitedQuestionIDs)).
			Bool("completed", row.Completed).
			Msg("response saved")
	}
}

func selectList(alias string, instance any) string {
	columns := store.Columns(instance)
	if alias == "" {
		return strings.Join(columns, ", ")
	}
	for i, c := range columns {
		columns[i] = alias + "." + c
	}
	return strings.Join(columns, ", ")
}

func (p *Postgres) LoadSurvey(ctx context.Context, surveyID int64) (*models.Survey, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", selectList("", models.Survey{}), surveysTable)

	survey, err := p.surveys.Get(ctx, query, surveyID)
	if err != nil {
		if errors.Is(err, fault.ErrNotFound) {
			return nil, fault.NewClientError(fmt.Sprintf("survey %d", surveyID), fault.ErrNotFound)
		}
		return nil, fmt.Errorf("load survey %d: %w", surveyID, err)
	}
	return survey, nil
}

// LoadSurveyGraph reads every question of the survey and their options.
func (p *Postgres) LoadSurveyGraph(ctx context.Context, surveyID int64) ([]flow.Question, []flow.Option, error) {
	questionQuery := fmt.Sprintf(
		"SELECT %s FROM %s WHERE survey_id = $1 ORDER BY order_index, id",
		selectList("", models.Question{}), questionsTable,
	)
	questionRows, err := p.questions.Select(ctx, questionQuery, surveyID)
	if err != nil {
		return nil, nil, fmt.Errorf("load questions of survey %d: %w", surveyID, err)
	}

	optionQuery := fmt.Sprintf(
		"SELECT %s FROM %s o JOIN %s q ON q.id = o.question_id WHERE q.survey_id = $1 ORDER BY o.question_id, o.order_index, o.id",
		selectList("o", models.Option{}), optionsTable, questionsTable,
	)
	optionRows, err := p.options.Select(ctx, optionQuery, surveyID)
	if err != nil {
		return nil, nil, fmt.Errorf("load options of survey %d: %w", surveyID, err)
	}

	questions := make([]flow.Question, 0, len(questionRows))
	for i := range questionRows {
		q, err := toFlowQuestion(&questionRows[i])
		if err != nil {
			return nil, nil, err
		}
		questions = append(questions, q)
	}

	options := make([]flow.Option, 0, len(optionRows))
	for i := range optionRows {
		o, err := toFlowOption(&optionRows[i])
		if err != nil {
			return nil, nil, err
		}
		options = append(options, o)
	}

	return questions, options, nil
}

// Decisions are immutable values, so rows hand their pointers over as is.
var copyOptions = copier.Option{
	Converters: []copier.TypeConverter{{
		SrcType: &flow.Decision{},
		DstType: &flow.Decision{},
		Fn:      func(src any) (any, error) { return src, nil },
	}},
}

func toFlowQuestion(row *models.Question) (flow.Question, error) {
	var q flow.Question
	if err := copier.CopyWithOption(&q, row, copyOptions); err != nil {
		return flow.Question{}, fmt.Errorf("copy question %d: %w", row.ID, err)
	}

	t, err := flow.ParseQuestionType(row.QuestionType)
	if err != nil {
		return flow.Question{}, fault.NewStructuralError(fmt.Sprintf("question %d", row.ID), err)
	}
	q.Type = t

	return q, nil
}

func toFlowOption(row *models.Option) (flow.Option, error) {
	var o flow.Option
	if err := copier.CopyWithOption(&o, row, copyOptions); err != nil {
		return flow.Option{}, fmt.Errorf("copy option %d: %w", row.ID, err)
	}

	return o, nil
}

// SetSurveyActive flips the active flag. Activation time is kept only while active.
func (p *Postgres) SetSurveyActive(ctx context.Context, surveyID int64, active bool) error {
	query := fmt.Sprintf(
		"UPDATE %s SET active = $2, activated_at = CASE WHEN $2 THEN now() ELSE NULL END WHERE id = $1",
		surveysTable,
	)

	n, err := p.surveys.Exec(ctx, query, surveyID, active)
	if err != nil {
		return fmt.Errorf("set survey %d active=%t: %w", surveyID, active, err)
	}
	if n == 0 {
		return fault.NewClientError(fmt.Sprintf("survey %d", surveyID), fault.ErrNotFound)
	}
	return nil
}

func (p *Postgres) CreateResponse(ctx context.Context, resp *flow.Response) error {
	if err := p.responses.Create(ctx, models.NewResponse(resp)); err != nil {
		return fmt.Errorf("create response %s: %w", resp.ID, err)
	}
	return nil
}

// LoadResponse reads a response with its answers in the order they were given.
func (p *Postgres) LoadResponse(ctx context.Context, responseID string) (*flow.Response, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", selectList("", models.Response{}), responsesTable)

	row, err := p.responses.Get(ctx, query, responseID)
	if err != nil {
		if errors.Is(err, fault.ErrNotFound) {
			return nil, fault.NewClientError(fmt.Sprintf("response %s", responseID), fault.ErrNotFound)
		}
		return nil, fmt.Errorf("load response %s: %w", responseID, err)
	}

	answerQuery := fmt.Sprintf(
		"SELECT %s FROM %s a JOIN %s r ON r.id = a.response_id WHERE a.response_id = $1 ORDER BY array_position(r.visited_question_ids, a.question_id)",
		selectList("a", models.Answer{}), answersTable, responsesTable,
	)
	answers, err := p.answers.Select(ctx, answerQuery, responseID)
	if err != nil {
		return nil, fmt.Errorf("load answers of response %s: %w", responseID, err)
	}

	return row.ToFlow(answers), nil
}

// SaveAnswer records answer and the response's new visited set in one
// transaction. resp.Version is bumped on success.
func (p *Postgres) SaveAnswer(ctx context.Context, resp *flow.Response, answer *flow.Answer) error {
	row := models.NewResponse(resp)
	row.Answer = models.NewAnswer(answer)

	return p.update(ctx, resp, row)
}

// UpdateResponse writes the response row. resp.Version is bumped on success.
func (p *Postgres) UpdateResponse(ctx context.Context, resp *flow.Response) error {
	return p.update(ctx, resp, models.NewResponse(resp))
}

func (p *Postgres) update(ctx context.Context, resp *flow.Response, row *models.Response) error {
	if err := p.responses.Update(ctx, row); err != nil {
		if errors.Is(err, fault.ErrConflict) {
			return fault.NewOperationError(fmt.Sprintf("response %s was modified concurrently", resp.ID), err)
		}
		if errors.Is(err, fault.ErrUniqueViolation) {
			return fault.NewOperationError(fmt.Sprintf("response %s", resp.ID), fault.ErrQuestionRevisited)
		}
		return fmt.Errorf("update response %s: %w", resp.ID, err)
	}

	resp.Version++
	return nil
}
