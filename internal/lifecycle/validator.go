package lifecycle

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrProposalInvalid 申报内容未通过校验
var ErrProposalInvalid = errors.New("申报内容校验失败")

// ProposalInput 需要校验的申报字段
type ProposalInput struct {
	Title            string `validate:"required,max=255"`
	ShortDescription string `validate:"required"`
	Objective        string `validate:"required,maxwords"`
	Content          string `validate:"required,maxwords"`
	Budget           int64  `validate:"budget"`
}

// FieldError 单个字段的校验失败
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// ValidationError 聚合的字段校验错误
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+":"+f.Rule)
	}
	return fmt.Sprintf("%s: %s", ErrProposalInvalid, strings.Join(parts, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrProposalInvalid }

// ProposalValidator 申报内容校验器
type ProposalValidator struct {
	v         *validator.Validate
	budgetMin int64
	budgetMax int64
	maxWords  int
}

// NewProposalValidator 创建校验器，预算区间与词数上限来自配置
func NewProposalValidator(budgetMin, budgetMax int64, maxWords int) *ProposalValidator {
	if maxWords <= 0 {
		maxWords = 100
	}
	pv := &ProposalValidator{
		v:         validator.New(validator.WithRequiredStructEnabled()),
		budgetMin: budgetMin,
		budgetMax: budgetMax,
		maxWords:  maxWords,
	}
	pv.mustRegister("maxwords", func(fl validator.FieldLevel) bool {
		return WordCount(fl.Field().String()) <= pv.maxWords
	})
	pv.mustRegister("budget", func(fl validator.FieldLevel) bool {
		b := fl.Field().Int()
		return b >= pv.budgetMin && b <= pv.budgetMax
	})
	return pv
}

// mustRegister 注册自定义规则，失败属于编程错误
func (pv *ProposalValidator) mustRegister(tag string, fn validator.Func) {
	if err := pv.v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("lifecycle: 注册校验规则 %s 失败: %v", tag, err))
	}
}

// Validate 校验申报内容，失败时返回 *ValidationError
func (pv *ProposalValidator) Validate(in ProposalInput) error {
	err := pv.v.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		param := fe.Param()
		switch fe.Tag() {
		case "maxwords":
			param = strconv.Itoa(pv.maxWords)
		case "budget":
			param = fmt.Sprintf("%d-%d", pv.budgetMin, pv.budgetMax)
		}
		out.Fields = append(out.Fields, FieldError{
			Field: toSnake(fe.Field()),
			Rule:  fe.Tag(),
			Param: param,
		})
	}
	return out
}

// WordCount 按空白分隔统计词数
func WordCount(s string) int {
	return len(strings.Fields(s))
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
