package rbac

// 权限常量
const (
	// 导师操作
	PermissionRatingCreate  = "rating:create"
	PermissionRatingRead    = "rating:read"
	PermissionApprovalSet   = "approval:set"
	PermissionConsensusRead = "consensus:read"

	// 管理操作
	PermissionStageAdvance = "stage:advance"
	PermissionOutboxReplay = "outbox:replay"
)

// 角色常量
const (
	RoleMentor = "mentor"
	RoleAdmin  = "admin"
)

// 角色权限映射
var rolePermissions = map[string][]string{
	RoleMentor: {
		PermissionRatingCreate,
		PermissionRatingRead,
		PermissionApprovalSet,
		PermissionConsensusRead,
	},
	RoleAdmin: {
		PermissionRatingRead,
		PermissionConsensusRead,
		PermissionStageAdvance,
		PermissionOutboxReplay,
	},
}

// NormalizeRole 空角色按 mentor 处理
func NormalizeRole(role string) string {
	if role == "" {
		return RoleMentor
	}
	return role
}

// HasPermission 检查角色是否有指定权限
func HasPermission(role string, permission string) bool {
	permissions, ok := rolePermissions[NormalizeRole(role)]
	if !ok {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission 检查角色是否有指定权限（返回错误而不是布尔值，便于处理）
func CheckPermission(mentorID int64, role string, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{
			MentorID:   mentorID,
			Role:       NormalizeRole(role),
			Permission: permission,
		}
	}
	return nil
}

// PermissionDeniedError 表示权限不足的错误
type PermissionDeniedError struct {
	MentorID   int64
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "insufficient permissions: " + e.Permission
}
