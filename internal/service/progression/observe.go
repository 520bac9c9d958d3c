package progression

import "go.uber.org/zap"

// outcomeOf 指标标签：success 或错误类别
func outcomeOf(err error) string {
	if err == nil {
		return "success"
	}
	if kind := KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}

// logFailure logs business rejections at Warn and everything else at Error.
func logFailure(log *zap.Logger, msg string, err error) {
	switch KindOf(err) {
	case KindValidation, KindAuthorization, KindNotFound:
		log.Warn(msg, zap.Error(err))
	case KindConsistency:
		log.Error(msg+" (consistency violation)", zap.Error(err))
	default:
		log.Error(msg, zap.Error(err))
	}
}
