package model

// NormalizeTenant はテナントIDを既知の集合に正規化する。
// 空または未知の値はデフォルトテナントに置き換える。
// フィード側がtenant_idを省略・誤設定しても取り込みを継続するための措置。
func NormalizeTenant(tenantID string, known []string, defaultTenant string) string {
	if tenantID == "" {
		return defaultTenant
	}
	for _, t := range known {
		if tenantID == t {
			return tenantID
		}
	}
	return defaultTenant
}
