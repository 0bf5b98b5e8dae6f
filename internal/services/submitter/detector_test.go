package submitter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/seekworks/autoapply/internal/common"
	"github.com/seekworks/autoapply/internal/models"
)

func page(body string) string {
	return "<html><body>" + body + "</body></html>"
}

func TestDetectPageStatusPriority(t *testing.T) {
	site := common.DefaultZhipinSite()

	tests := []struct {
		name string
		html string
		want models.SubmissionStatus
	}{
		{
			"suspended beats everything",
			page(`<div>很抱歉，你选择的职位目前已经暂停招聘</div><div>请先登录</div><a class="btn-startchat">立即沟通</a>`),
			models.StatusJobSuspended,
		},
		{
			"expired beats login",
			page(`<div>职位已关闭</div><div>请先登录</div>`),
			models.StatusJobExpired,
		},
		{
			"login beats applied",
			page(`<div>请先登录</div><a class="btn-startchat">已申请</a>`),
			models.StatusLoginRequired,
		},
		{
			"applied beats pending",
			page(`<a class="btn-startchat">已申请</a>`),
			models.StatusAlreadyApplied,
		},
		{
			"disabled button counts as applied",
			page(`<a class="btn-startchat disabled">立即沟通</a>`),
			models.StatusAlreadyApplied,
		},
		{
			"no button",
			page(`<div>职位详情</div>`),
			models.StatusButtonNotFound,
		},
		{
			"button without an apply verb is not an apply button",
			page(`<a class="btn-startchat">查看详情</a>`),
			models.StatusButtonNotFound,
		},
		{
			"live button is pending",
			page(`<a class="btn-startchat">立即沟通</a>`),
			models.StatusPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detection := DetectPage(tt.html, "职位页", &site)
			assert.Equal(t, tt.want, detection.Status)
			assert.Equal(t, "职位页", detection.PageTitle)
		})
	}
}

func TestDetectPageCapturesButtonDiagnostics(t *testing.T) {
	site := common.DefaultZhipinSite()
	detection := DetectPage(page(`<a class="btn-startchat primary">立即沟通</a>`), "t", &site)

	assert.Equal(t, models.StatusPending, detection.Status)
	assert.Equal(t, "a.btn-startchat", detection.ButtonSelector)
	assert.Equal(t, "立即沟通", detection.ButtonText)
	assert.Equal(t, "btn-startchat primary", detection.ButtonClass)
	assert.NotEmpty(t, detection.PageSnippet)
}

func TestDetectPageSnippetBounded(t *testing.T) {
	long := ""
	for i := 0; i < 500; i++ {
		long += "长"
	}
	site := common.DefaultZhipinSite()
	detection := DetectPage(page("<div>"+long+"</div>"), "t", &site)
	assert.LessOrEqual(t, len([]rune(detection.PageSnippet)), snippetRunes)
}
