package mail

import (
	"bytes"
	"html/template"
)

var accountCreatedTmpl = template.Must(template.New("account").Parse(`<p>{{.FullName}}，您好：</p>
<p>您的 ResearchHub 账号已创建。</p>
<p>用户名：<b>{{.Username}}</b><br>初始密码：<b>{{.Password}}</b></p>
<p>首次登录后请立即修改密码。</p>`))

// AccountCreatedData 新账号通知模板数据
type AccountCreatedData struct {
	FullName string
	Username string
	Password string
}

// RenderAccountCreated 渲染新账号通知邮件
func RenderAccountCreated(data AccountCreatedData) (string, error) {
	var buf bytes.Buffer
	if err := accountCreatedTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
