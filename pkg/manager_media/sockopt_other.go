//go:build !linux

package manager_media

// setSockOptDSCP на остальных платформах не поддерживается
func setSockOptDSCP(fd, dscp int) error {
	return nil
}
